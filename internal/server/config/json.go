package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophaccounts/internal/flagx"
	"github.com/dmitrijs2005/gophaccounts/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration, so both "15m" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from "zero" so a partial file only
// overrides what it names.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	LogLevel                     *string         `json:"log_level"`
	AllowedOrigin                *string         `json:"allowed_origin"`
	AccessTokenSecret            *string         `json:"access_token_secret"`
	RefreshTokenSecret           *string         `json:"refresh_token_secret"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	EnforcePasswordConfirmation  *bool           `json:"enforce_password_confirmation"`
	ReviewTimezone               *string         `json:"review_timezone"`
	StoreBackend                 *string         `json:"store_backend"`
	UsersTable                   *string         `json:"users_table"`
	UsersIDIndex                 *string         `json:"users_id_index"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	AWSRegion                    *string         `json:"aws_region"`
	AWSEndpoint                  *string         `json:"aws_endpoint"`
	AWSAccessKeyID               *string         `json:"aws_access_key_id"`
	AWSSecretAccessKey           *string         `json:"aws_secret_access_key"`
	EventBusName                 *string         `json:"event_bus_name"`
	ReviewEventSource            *string         `json:"review_event_source"`
	ReviewAddedDetailType        *string         `json:"review_added_detail_type"`
	AccountEventSource           *string         `json:"account_event_source"`
	CartInitDetailType           *string         `json:"cart_init_detail_type"`
	OrderInitDetailType          *string         `json:"order_init_detail_type"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	PresignValidity              *timex.Duration `json:"presign_validity"`
}

// parseJson loads the file named by -c/-config (or $CONFIG) and copies every
// field present in it onto config. No file means no change.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.AllowedOrigin, c.AllowedOrigin)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.EnforcePasswordConfirmation != nil {
		config.EnforcePasswordConfirmation = *c.EnforcePasswordConfirmation
	}
	setString(&config.ReviewTimezone, c.ReviewTimezone)
	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.UsersTable, c.UsersTable)
	setString(&config.UsersIDIndex, c.UsersIDIndex)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AWSRegion, c.AWSRegion)
	setString(&config.AWSEndpoint, c.AWSEndpoint)
	setString(&config.AWSAccessKeyID, c.AWSAccessKeyID)
	setString(&config.AWSSecretAccessKey, c.AWSSecretAccessKey)
	setString(&config.EventBusName, c.EventBusName)
	setString(&config.ReviewEventSource, c.ReviewEventSource)
	setString(&config.ReviewAddedDetailType, c.ReviewAddedDetailType)
	setString(&config.AccountEventSource, c.AccountEventSource)
	setString(&config.CartInitDetailType, c.CartInitDetailType)
	setString(&config.OrderInitDetailType, c.OrderInitDetailType)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.PresignValidity != nil {
		config.PresignValidity = c.PresignValidity.Duration
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
