package authform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authform/email"
	"golang.org/x/text/language"
)

const (
	// LocalePTBR is the default catalog.
	LocalePTBR = "pt-BR"
	// LocaleEN is the English catalog.
	LocaleEN = "en"
)

// Messages is the user-facing text of one locale. Entries ending in "Format" take
// one fmt argument: the minimum length for PasswordTooShortFormat, an error
// message for the others.
type Messages struct {
	EmailRequired          string
	EmailMissingAt         string
	EmailBadLocal          string
	EmailBadDomain         string
	EmailTooLong           string
	EmailInvalid           string
	CheckFailedFormat      string
	CheckUnexpected        string
	CheckRateLimited       string
	InvalidCredentials     string
	LoginSucceeded         string
	EmailTaken             string
	PasswordMismatch       string
	PasswordTooShortFormat string
	RaceGuardFailedFormat  string
	RaceGuardTaken         string
	RaceGuardUnexpected    string
	AlreadyRegistered      string
	RegisterFailedFormat   string
	RegisterSucceeded      string
	ResetSucceeded         string
	SubmitRateLimited      string
	Unexpected             string
}

var catalogs = map[string]Messages{
	LocalePTBR: {
		EmailRequired:          "Email é obrigatório",
		EmailMissingAt:         "O email deve conter @",
		EmailBadLocal:          "A parte antes do @ é inválida",
		EmailBadDomain:         "O domínio do email é inválido",
		EmailTooLong:           "Email muito longo",
		EmailInvalid:           "Email inválido",
		CheckFailedFormat:      "Erro ao verificar email: %s",
		CheckUnexpected:        "Erro inesperado ao verificar email. Tente novamente.",
		CheckRateLimited:       "Muitas tentativas de verificação. Recarregue a página.",
		InvalidCredentials:     "Email ou senha incorretos. Verifique suas credenciais.",
		LoginSucceeded:         "Login realizado com sucesso!",
		EmailTaken:             `Este email já está cadastrado. Use "Esqueci minha senha" ou tente fazer login.`,
		PasswordMismatch:       "As senhas não coincidem",
		PasswordTooShortFormat: "A senha deve ter pelo menos %d caracteres",
		RaceGuardFailedFormat:  "Erro na verificação final: %s",
		RaceGuardTaken:         `Este email já está cadastrado. Use "Esqueci minha senha" ou faça login.`,
		RaceGuardUnexpected:    "Erro crítico na verificação. Recarregue a página e tente novamente.",
		AlreadyRegistered:      "Este email já está cadastrado no sistema. Faça login.",
		RegisterFailedFormat:   "Erro no cadastro: %s",
		RegisterSucceeded:      "Cadastro realizado com sucesso! Verifique seu email para confirmar.",
		ResetSucceeded:         "Email de recuperação enviado! Verifique sua caixa de entrada.",
		SubmitRateLimited:      "Muitas tentativas. Aguarde alguns minutos e tente novamente.",
		Unexpected:             "Ocorreu um erro inesperado. Tente novamente.",
	},
	LocaleEN: {
		EmailRequired:          "Email is required",
		EmailMissingAt:         "Email must contain @",
		EmailBadLocal:          "The part before @ is invalid",
		EmailBadDomain:         "The email domain is invalid",
		EmailTooLong:           "Email is too long",
		EmailInvalid:           "Invalid email",
		CheckFailedFormat:      "Could not verify email: %s",
		CheckUnexpected:        "Unexpected error while verifying email. Please try again.",
		CheckRateLimited:       "Too many verification attempts. Reload the page.",
		InvalidCredentials:     "Incorrect email or password. Check your credentials.",
		LoginSucceeded:         "Signed in successfully!",
		EmailTaken:             `This email is already registered. Use "Forgot password" or sign in.`,
		PasswordMismatch:       "Passwords do not match",
		PasswordTooShortFormat: "Password must be at least %d characters",
		RaceGuardFailedFormat:  "Final verification failed: %s",
		RaceGuardTaken:         `This email is already registered. Use "Forgot password" or sign in.`,
		RaceGuardUnexpected:    "Critical verification error. Reload the page and try again.",
		AlreadyRegistered:      "This email is already registered. Sign in instead.",
		RegisterFailedFormat:   "Registration failed: %s",
		RegisterSucceeded:      "Account created! Check your inbox to confirm your email.",
		ResetSucceeded:         "Recovery email sent! Check your inbox.",
		SubmitRateLimited:      "Too many attempts. Wait a few minutes and try again.",
		Unexpected:             "An unexpected error occurred. Please try again.",
	},
}

var localeMatcher = language.NewMatcher([]language.Tag{
	language.BrazilianPortuguese,
	language.English,
})

// SupportedLocale reports whether a catalog exists for locale.
func SupportedLocale(locale string) bool {
	_, ok := catalogs[locale]
	return ok
}

// MessagesFor returns the catalog for locale, falling back to pt-BR.
func MessagesFor(locale string) Messages {
	if m, ok := catalogs[locale]; ok {
		return m
	}
	return catalogs[LocalePTBR]
}

// NegotiateLocale picks the best supported locale for an Accept-Language header.
// Unparseable or empty headers yield fallback.
func NegotiateLocale(acceptLanguage, fallback string) string {
	if strings.TrimSpace(acceptLanguage) == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	if index == 1 {
		return LocaleEN
	}
	return LocalePTBR
}

// EmailError maps a validator result to localized text.
func (m Messages) EmailError(res email.Result) string {
	if res.Valid || res.Err == nil {
		return ""
	}
	switch {
	case errors.Is(res.Err, email.ErrEmpty):
		return m.EmailRequired
	case errors.Is(res.Err, email.ErrMissingAt):
		return m.EmailMissingAt
	case errors.Is(res.Err, email.ErrMalformedLocal):
		return m.EmailBadLocal
	case errors.Is(res.Err, email.ErrMalformedDomain):
		return m.EmailBadDomain
	case errors.Is(res.Err, email.ErrTooLong):
		return m.EmailTooLong
	default:
		return m.EmailInvalid
	}
}

func (m Messages) passwordTooShort(minLen int) string {
	return fmt.Sprintf(m.PasswordTooShortFormat, minLen)
}

func (m Messages) checkFailed(err error) string {
	switch {
	case errors.Is(err, ErrUnexpectedFault):
		return m.CheckUnexpected
	case errors.Is(err, ErrLookupRateLimited):
		return m.CheckRateLimited
	default:
		return fmt.Sprintf(m.CheckFailedFormat, err.Error())
	}
}

func (m Messages) raceGuardFailed(err error) string {
	if errors.Is(err, ErrUnexpectedFault) {
		return m.RaceGuardUnexpected
	}
	return fmt.Sprintf(m.RaceGuardFailedFormat, err.Error())
}

func isInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidLoginCredentials) ||
		strings.Contains(err.Error(), ErrInvalidLoginCredentials.Error())
}

func isAlreadyRegistered(err error) bool {
	return errors.Is(err, ErrAlreadyRegistered) ||
		strings.Contains(err.Error(), "already registered")
}
