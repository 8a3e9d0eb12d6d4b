package oauth

import "fmt"

// Normalized provider error codes, the union across all providers. The tables
// below map every one of them to a human message; anything outside the union
// still renders through the generic fallback.
const (
	CodeAuthDenied          = "auth_denied"
	CodeNoCode              = "no_code"
	CodeNoState             = "no_state"
	CodeInvalidState        = "invalid_state"
	CodePKCEError           = "pkce_error"
	CodeTokenExchangeFailed = "token_exchange_failed"
	CodeNoAccessToken       = "no_access_token"
	CodeNoToken             = "no_token"
	CodeUserInfoFailed      = "user_info_failed"
	CodeEmailNotVerified    = "email_not_verified"
	CodeNoEmail             = "no_email"
	CodeNoUserID            = "no_user_id"
	CodeDatabaseError       = "database_error"
	CodeNetworkError        = "network_error"
	CodeSessionExpired      = "session_expired"
	CodeInvalidTokenFormat  = "invalid_token_format"
	CodeTokenExpired        = "token_expired"
	CodeTokenDecodeFailed   = "token_decode_failed"
	CodeUnexpectedError     = "unexpected_error"
	CodeTimeout             = "timeout"
	CodeServerError         = "server_error"
	CodeExchangeFailed      = "exchange_failed"
)

// Structural decode reasons produced by the token codec.
const (
	CodeWrongSegmentCount   = "wrong_segment_count"
	CodePayloadDecodeFailed = "payload_decode_failed"
)

// baseMessages is the shared code-to-message table. Provider tables overlay it.
var baseMessages = map[string]string{
	CodeAuthDenied:          "Vous avez refusé l'autorisation. Aucune connexion n'a été établie.",
	CodeNoCode:              "Le fournisseur n'a pas renvoyé de code d'autorisation.",
	CodeNoState:             "Paramètre de sécurité manquant dans la réponse du fournisseur.",
	CodeInvalidState:        "Paramètre de sécurité invalide. Veuillez réessayer la connexion.",
	CodePKCEError:           "Échec de la vérification de sécurité PKCE.",
	CodeTokenExchangeFailed: "L'échange du code d'autorisation a échoué.",
	CodeNoAccessToken:       "Le fournisseur n'a pas renvoyé de jeton d'accès.",
	CodeNoToken:             "Aucun jeton reçu. Veuillez réessayer la connexion.",
	CodeUserInfoFailed:      "Impossible de récupérer votre profil auprès du fournisseur.",
	CodeEmailNotVerified:    "Votre adresse e-mail n'est pas vérifiée chez le fournisseur.",
	CodeNoEmail:             "Le fournisseur n'a communiqué aucune adresse e-mail.",
	CodeNoUserID:            "Le fournisseur n'a communiqué aucun identifiant utilisateur.",
	CodeDatabaseError:       "Erreur interne lors de l'enregistrement de la connexion.",
	CodeNetworkError:        "Erreur réseau pendant l'authentification. Veuillez réessayer.",
	CodeSessionExpired:      "Votre session a expiré. Veuillez vous reconnecter.",
	CodeInvalidTokenFormat:  "Le jeton reçu est mal formé.",
	CodeTokenExpired:        "Le jeton reçu est déjà expiré. Veuillez vous reconnecter.",
	CodeTokenDecodeFailed:   "Le jeton reçu n'a pas pu être décodé.",
	CodeUnexpectedError:     "Une erreur inattendue s'est produite. Veuillez réessayer.",
	CodeTimeout:             "Le fournisseur n'a pas répondu à temps. Veuillez réessayer.",
	CodeServerError:         "Le serveur d'authentification a rencontré une erreur.",
	CodeExchangeFailed:      "L'échange du code d'autorisation avec le serveur a échoué.",
	CodeWrongSegmentCount:   "Le jeton reçu n'a pas le format attendu.",
	CodePayloadDecodeFailed: "Le contenu du jeton reçu est illisible.",
}

// providerMessages overlays provider-specific phrasings on top of baseMessages.
var providerMessages = map[string]map[string]string{
	"google": {
		CodeAuthDenied:       "Vous avez refusé l'accès à votre compte Google.",
		CodeEmailNotVerified: "Votre adresse Google n'est pas vérifiée.",
	},
	"x": {
		CodeAuthDenied: "Vous avez refusé l'accès à votre compte X.",
		CodeNoEmail:    "Votre compte X ne partage aucune adresse e-mail.",
	},
	"facebook": {
		CodeAuthDenied: "Vous avez refusé l'accès à votre compte Facebook.",
	},
}

// MessageTable resolves error codes to localized messages for one provider.
// Lookup is a pure, total function: every code maps to some string.
type MessageTable struct {
	provider string
}

// Messages returns the table for the named provider. Unknown providers fall
// back to the shared base table.
func Messages(provider string) MessageTable {
	return MessageTable{provider: provider}
}

// Lookup maps a provider error code to its localized message. Unrecognized
// codes render through the generic template instead of failing.
func (t MessageTable) Lookup(code string) string {
	if overlay, ok := providerMessages[t.provider]; ok {
		if msg, ok := overlay[code]; ok {
			return msg
		}
	}
	if msg, ok := baseMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Erreur: %s", code)
}
