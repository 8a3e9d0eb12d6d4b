// Package oauth implements the third-party connection lifecycle: building the
// provider authorization redirect, normalizing the provider's callback into a
// single tagged outcome, and persisting the resulting credential. All provider
// differences are carried by configuration; the transition logic is shared.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/publidesk/passerelle/internal/audit"
	"github.com/publidesk/passerelle/internal/backend"
	"github.com/publidesk/passerelle/internal/config"
	"github.com/publidesk/passerelle/internal/credential"
	"github.com/publidesk/passerelle/internal/token"
)

// ErrUnknownProvider is returned when a flow names a provider that is not configured.
var ErrUnknownProvider = errors.New("oauth: unknown provider")

// Provider is the resolved runtime view of one configured platform.
type Provider struct {
	Name         string
	Delivery     string
	AuthorizeURL string
	InitiatePath string
	ExchangePath string
	ErrorDelay   time.Duration

	messages MessageTable
}

// Service owns the OAuth connection lifecycle for all configured providers.
type Service struct {
	backend     *backend.Client
	audit       audit.Recorder
	initiations *initiationStore

	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewService builds the lifecycle service from the provider configuration.
func NewService(cfg *config.Config, client *backend.Client, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	s := &Service{
		backend:     client,
		audit:       recorder,
		initiations: newInitiationStore(initiationTTL),
	}
	s.Reload(cfg)
	return s
}

// Reload swaps the provider registry, used by config hot reload.
func (s *Service) Reload(cfg *config.Config) {
	providers := make(map[string]*Provider, len(cfg.Providers))
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		name := strings.ToLower(strings.TrimSpace(p.Name))
		providers[name] = &Provider{
			Name:         name,
			Delivery:     p.Delivery,
			AuthorizeURL: p.AuthorizeURL,
			InitiatePath: p.InitiatePath,
			ExchangePath: p.ExchangePath,
			ErrorDelay:   p.ErrorDelay(),
			messages:     Messages(name),
		}
	}

	s.mu.Lock()
	s.providers = providers
	s.mu.Unlock()
}

// Provider resolves a configured provider by name.
func (s *Service) Provider(name string) (*Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	s.mu.RLock()
	p, ok := s.providers[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// BeginAuthorization prepares the redirect that sends the browser to the
// provider. Exchange providers first obtain the authorization URL and CSRF
// state from the backend; direct providers use their fixed backend route.
// Starting a new authorization replaces any pending one for the session.
func (s *Service) BeginAuthorization(ctx context.Context, providerName, sessionID, errorReturnPath string) (string, error) {
	p, err := s.Provider(providerName)
	if err != nil {
		return "", err
	}

	ictx := InitiationContext{
		Provider:        p.Name,
		ErrorReturnPath: errorReturnPath,
	}

	switch p.Delivery {
	case config.DeliveryCode:
		initiation, errInit := s.backend.InitiateOAuth(ctx, p.InitiatePath)
		if errInit != nil {
			s.audit.Record(ctx, audit.Event{
				SessionID: sessionID, Provider: p.Name,
				Action: audit.ActionInitiate, Outcome: "error", Detail: errInit.Error(),
			})
			return "", fmt.Errorf("oauth: initiate %s: %w", p.Name, errInit)
		}
		ictx.AuthorizationURL = initiation.AuthorizationURL
		ictx.State = initiation.State
	default:
		ictx.AuthorizationURL = p.AuthorizeURL
	}

	s.initiations.Begin(sessionID, ictx)
	s.audit.Record(ctx, audit.Event{
		SessionID: sessionID, Provider: p.Name,
		Action: audit.ActionInitiate, Outcome: "redirected",
	})
	log.WithFields(log.Fields{"provider": p.Name, "session": sessionID}).Info("authorization started")
	return ictx.AuthorizationURL, nil
}

// HandleCallback runs the callback state machine for one provider redirect.
// The invocation is processed exactly once and always terminates in a tagged
// outcome: panics and unexpected failures are normalized, never propagated.
// On success the credential has been written to the store before this returns.
func (s *Service) HandleCallback(ctx context.Context, providerName, sessionID string, query url.Values) (outcome Outcome) {
	p, err := s.Provider(providerName)
	if err != nil {
		return Outcome{
			Kind:    KindMalformed,
			Code:    CodeUnexpectedError,
			Message: Messages("").Lookup(CodeUnexpectedError),
			Delay:   3 * time.Second,
		}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			log.WithFields(log.Fields{"provider": p.Name, "error": recovered}).Error("callback handler panicked")
			outcome = p.failure(KindMalformed, CodeUnexpectedError, "")
		}
		s.audit.Record(ctx, audit.Event{
			SessionID: sessionID, Provider: p.Name,
			Action: audit.ActionCallback, Outcome: string(outcome.Kind), Detail: outcome.Code,
		})
	}()

	// The pending initiation context is consumed regardless of the result;
	// a callback is never processed twice for the same initiation.
	ictx, hadInitiation := s.initiations.Consume(sessionID)

	switch payload := ParsePayload(query, p.Delivery).(type) {
	case ProviderDeclined:
		log.WithFields(log.Fields{"provider": p.Name, "code": payload.Code}).Info("provider declined authorization")
		return p.failure(KindProviderError, payload.Code, payload.RawMessage)

	case Empty:
		if p.Delivery == config.DeliveryCode {
			return p.failure(KindMalformed, CodeNoCode, "")
		}
		return p.failure(KindMalformed, CodeNoToken, "")

	case AuthorizationCode:
		if strings.TrimSpace(payload.State) == "" {
			return p.failure(KindMalformed, CodeNoState, "")
		}
		if ValidateState(payload.State) != nil {
			return p.failure(KindMalformed, CodeInvalidState, "")
		}
		if hadInitiation && ictx.State != "" && ictx.State != payload.State {
			return p.failure(KindMalformed, CodeInvalidState, "")
		}
		tok, errExchange := s.backend.ExchangeCode(ctx, p.ExchangePath, payload.Code, payload.State)
		if errExchange != nil {
			log.WithFields(log.Fields{"provider": p.Name, "error": errExchange}).Warn("code exchange failed")
			return p.failure(KindProviderError, CodeExchangeFailed, "")
		}
		return s.acceptToken(ctx, p, sessionID, tok)

	case DirectToken:
		return s.acceptToken(ctx, p, sessionID, payload.Token)

	default:
		return p.failure(KindMalformed, CodeUnexpectedError, "")
	}
}

// acceptToken validates a delivered bearer token and persists the credential.
func (s *Service) acceptToken(ctx context.Context, p *Provider, sessionID, tok string) Outcome {
	cred, err := credential.FromToken(tok)
	if err != nil {
		var decodeErr *token.DecodeError
		if errors.As(err, &decodeErr) {
			return p.failure(KindMalformed, decodeErr.Reason, "")
		}
		return p.failure(KindMalformed, CodeTokenDecodeFailed, "")
	}
	if !cred.Valid() {
		return p.failure(KindMalformed, CodeTokenExpired, "")
	}

	// Store write must complete before the caller navigates to the landing
	// page, otherwise the landing page could read an empty store.
	if err = s.backend.StoreCredential(ctx, sessionID, cred); err != nil {
		log.WithFields(log.Fields{"provider": p.Name, "error": err}).Error("credential store write failed")
		return p.failure(KindMalformed, CodeDatabaseError, "")
	}

	log.WithFields(log.Fields{"provider": p.Name, "session": sessionID}).Info("authorization completed")
	return Outcome{Kind: KindSuccess, Credential: cred}
}

func (p *Provider) failure(kind OutcomeKind, code, raw string) Outcome {
	return Outcome{
		Kind:       kind,
		Code:       code,
		RawMessage: raw,
		Message:    p.messages.Lookup(code),
		Delay:      p.ErrorDelay,
	}
}
