// Package i18n provides language detection and the string table for
// user-facing messages. Machine error codes stay English; only the
// Message field of API responses is localized.
package i18n

import "strings"

const defaultLang = "en"

var translations = map[string]map[string]string{
	"en": {
		"required":              "Required",
		"unauthorized":          "You must be signed in to do that",
		"forbidden":             "You do not have access to this resource",
		"not_found":             "Not found",
		"client_limit_reached":  "Free tier limit: maximum number of clients reached. Upgrade for unlimited!",
		"invoice_limit_reached": "Free tier limit: maximum invoices this month reached. Upgrade for unlimited!",
		"validation_failed":     "Please fix the highlighted fields",
		"client_required":       "Select a client",
		"due_date_required":     "Due date is required",
		"line_items_required":   "Add at least one line item",
		"invalid_credentials":   "Invalid email or password",
		"email_taken":           "An account with this email already exists",
		"remote_error":          "Something went wrong, please try again",
	},
	"fr": {
		"required":              "Requis",
		"unauthorized":          "Vous devez être connecté pour faire cela",
		"forbidden":             "Vous n'avez pas accès à cette ressource",
		"not_found":             "Introuvable",
		"client_limit_reached":  "Limite de l'offre gratuite : nombre maximum de clients atteint. Passez à l'offre Pro !",
		"invoice_limit_reached": "Limite de l'offre gratuite : nombre maximum de factures ce mois-ci atteint. Passez à l'offre Pro !",
		"validation_failed":     "Veuillez corriger les champs indiqués",
		"client_required":       "Sélectionnez un client",
		"due_date_required":     "La date d'échéance est requise",
		"line_items_required":   "Ajoutez au moins une ligne",
		"invalid_credentials":   "Email ou mot de passe invalide",
		"email_taken":           "Un compte avec cet email existe déjà",
		"remote_error":          "Une erreur est survenue, veuillez réessayer",
	},
}

// DetectLanguage picks a supported language from an Accept-Language header
// value. Only the primary subtag is considered; unknown or empty input
// falls back to English.
func DetectLanguage(acceptLanguage string) string {
	first := strings.TrimSpace(strings.Split(acceptLanguage, ",")[0])
	if i := strings.IndexAny(first, "-;"); i >= 0 {
		first = first[:i]
	}
	first = strings.ToLower(first)
	if _, ok := translations[first]; ok {
		return first
	}
	return defaultLang
}

// T translates a message code. Unknown languages fall back to English;
// unknown codes fall back to the code itself so missing entries are
// visible rather than silent.
func T(lang, code string) string {
	table, ok := translations[lang]
	if !ok {
		table = translations[defaultLang]
	}
	if msg, ok := table[code]; ok {
		return msg
	}
	if lang != defaultLang {
		if msg, ok := translations[defaultLang][code]; ok {
			return msg
		}
	}
	return code
}
