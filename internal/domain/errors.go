package domain

import "errors"

// Sentinel errors for the application. User-facing messages keep the legacy
// French wire strings; clients match on them.
var (
	// Connection-time failures, surfaced as the handshake refusal reason.
	ErrCredentialMissing = errors.New("Token manquant")
	ErrCredentialInvalid = errors.New("Authentification échouée")
	ErrIdentityNotFound  = errors.New("Utilisateur non trouvé")

	// Send-time failures.
	ErrRecipientNotFound = errors.New("Destinataire non trouvé")
	ErrBlocked           = errors.New("Vous ne pouvez pas envoyer de message à cet utilisateur")
	ErrEmptyContent      = errors.New("Contenu requis")
	ErrContentTooLong    = errors.New("Maximum 5000 caractères")

	// Per-operation failures.
	ErrMessageNotFound   = errors.New("Message non trouvé")
	ErrUnauthorized      = errors.New("Non autorisé")
	ErrEditWindowExpired = errors.New("Délai de modification dépassé (15 minutes)")

	// Generic application errors.
	ErrNotFound     = errors.New("Ressource non trouvée")
	ErrConflict     = errors.New("Ressource déjà existante")
	ErrInvalidInput = errors.New("Requête invalide")
	ErrInternal     = errors.New("Erreur serveur")
)

var userFacing = []error{
	ErrCredentialMissing,
	ErrCredentialInvalid,
	ErrIdentityNotFound,
	ErrRecipientNotFound,
	ErrBlocked,
	ErrEmptyContent,
	ErrContentTooLong,
	ErrMessageNotFound,
	ErrUnauthorized,
	ErrEditWindowExpired,
	ErrNotFound,
	ErrConflict,
	ErrInvalidInput,
	ErrInternal,
}

// IsUserFacing reports whether err is (or wraps) one of the sentinels above.
// Anything else carries internal detail and must be replaced by ErrInternal
// before reaching a client.
func IsUserFacing(err error) bool {
	for _, s := range userFacing {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
