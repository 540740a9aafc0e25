package model

import "time"

// Session is the signed-in account persisted on the device. OwnerID is the
// Cognito sub and scopes every task query.
type Session struct {
	OwnerID      string    `json:"owner_id"`
	Email        string    `json:"email"`
	IDToken      string    `json:"id_token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
