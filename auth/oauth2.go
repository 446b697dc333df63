package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Conf represents the configuration of the remote identity provider.
type Conf struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

func (c Conf) toOauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.TokenURL, AuthStyle: oauth2.AuthStyleInHeader},
		Scopes:       c.Scopes,
	}
}

// OAuth2Provider exchanges the submitted credentials for a token using the
// resource owner password grant.
type OAuth2Provider struct {
	conf   *oauth2.Config
	client *http.Client
}

// NewOAuth2Provider builds a provider for conf. A nil client uses the
// default HTTP client.
func NewOAuth2Provider(conf Conf, client *http.Client) *OAuth2Provider {
	return &OAuth2Provider{conf: conf.toOauth2Config(), client: client}
}

// Authenticate requests a token. A rejected grant maps to ErrInvalidCredentials;
// transport failures are returned wrapped.
func (p *OAuth2Provider) Authenticate(ctx context.Context, c Credentials) (Identity, error) {
	if c.Username == "" || c.Password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	tok, err := p.conf.PasswordCredentialsToken(ctx, c.Username, c.Password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("failed to get token: %w", err)
	}
	name := c.Username
	if n, ok := tok.Extra("name").(string); ok && n != "" {
		name = n
	}
	return Identity{Subject: c.Username, Name: name}, nil
}
