package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
)

type sessionResponse struct {
	AccessToken string         `json:"accessToken"`
	User        models.Profile `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[services.LoginInput](w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if in == nil {
		in = &services.LoginInput{}
	}

	sess, err := s.accounts.Login(r.Context(), *in)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, refreshCookie(sess.RefreshToken, s.refreshValidity))
	writeMessage(w, http.StatusOK, "Login successful", sessionResponse{AccessToken: sess.AccessToken, User: sess.User})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, err := s.accounts.Refresh(r.Context(), refreshTokenFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Token refreshed", sessionResponse{AccessToken: sess.AccessToken, User: sess.User})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[services.SignupInput](w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.accounts.Signup(r.Context(), in); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Sign-Up Successful", nil)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[services.UpdateProfileInput](w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.accounts.UpdateProfile(r.Context(), in); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Update Successful", nil)
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request) {
	in, err := decodeBody[services.ReviewInput](w, r)
	if err != nil {
		writeErrorAs(w, err, "Invalid")
		return
	}
	if err := s.accounts.AddReview(r.Context(), in); err != nil {
		writeErrorAs(w, err, "Invalid")
		return
	}
	writeMessage(w, http.StatusOK, "Update Successful", nil)
}

// handleGetUsers serves GET /users: a lookup when email or userId is in
// the query, a logout otherwise.
func (s *Server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	q := services.UserQuery{
		Email:  r.URL.Query().Get("email"),
		UserID: r.URL.Query().Get("userId"),
	}
	if q.Email == "" && q.UserID == "" {
		s.handleLogout(w, r)
		return
	}

	user, err := s.accounts.GetUserData(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "OK", user.Sanitize())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.accounts.Logout(r.Context(), refreshTokenFrom(r)) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.SetCookie(w, expiredRefreshCookie())
	writeMessage(w, http.StatusOK, "Cookie cleared", nil)
}

func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.images.PresignUpload(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "presign upload", "user_id", userIDFromContext(r.Context()), "error", err)
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "OK", up)
}

func (s *Server) handlePresignDownload(w http.ResponseWriter, r *http.Request) {
	url, err := s.images.PresignDownload(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "OK", map[string]string{"url": url})
}
