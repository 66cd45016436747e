package repository

import "time"

// ExternalLogin asocia una credencial de un identity provider con un usuario.
// El par (Provider, ProviderSubject) es único: a lo sumo un usuario lo posee.
type ExternalLogin struct {
	ID              string
	Provider        string
	ProviderSubject string
	UserID          string
	Created         time.Time
	LastModified    time.Time
}
