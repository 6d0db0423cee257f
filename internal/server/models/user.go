package models

// User is the stored account record, keyed by Email. UUID is assigned once at
// signup and never reused. Password holds the bcrypt hash, never plain text.
type User struct {
	Email     string            `json:"email" dynamodbav:"email"`
	Password  string            `json:"password" dynamodbav:"password"`
	UUID      string            `json:"uuid" dynamodbav:"uuid"`
	FirstName string            `json:"firstName" dynamodbav:"firstName"`
	LastName  string            `json:"lastName" dynamodbav:"lastName"`
	Phone     string            `json:"phone" dynamodbav:"phone"`
	Address   string            `json:"address" dynamodbav:"address"`
	IsAdmin   bool              `json:"isAdmin" dynamodbav:"isAdmin"`
	Reviews   map[string]Review `json:"reviews" dynamodbav:"reviews"`
}

// Review is one entry of User.Reviews, keyed there by product id.
// Resubmitting for the same product replaces the entry.
type Review struct {
	Title       string  `json:"title" dynamodbav:"title"`
	Rating      float64 `json:"rating" dynamodbav:"rating"`
	Description string  `json:"description" dynamodbav:"description"`
	Date        string  `json:"date" dynamodbav:"date"`
	FullName    string  `json:"fullName" dynamodbav:"fullName"`
	ImageURL    string  `json:"imageURL" dynamodbav:"imageURL"`
	ProdName    string  `json:"prodName" dynamodbav:"prodName"`
}

// Profile is the sanitized view of a User: no password hash, no identifier.
type Profile struct {
	Email     string            `json:"email"`
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
	Phone     string            `json:"phone"`
	Address   string            `json:"address"`
	IsAdmin   bool              `json:"isAdmin"`
	Reviews   map[string]Review `json:"reviews"`
}

// Sanitize strips credentials from u.
func (u *User) Sanitize() Profile {
	reviews := make(map[string]Review, len(u.Reviews))
	for k, v := range u.Reviews {
		reviews[k] = v
	}
	return Profile{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Address:   u.Address,
		IsAdmin:   u.IsAdmin,
		Reviews:   reviews,
	}
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	if u.Reviews != nil {
		c.Reviews = make(map[string]Review, len(u.Reviews))
		for k, v := range u.Reviews {
			c.Reviews[k] = v
		}
	}
	return &c
}
