package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/logger"
	"github.com/timmy/memebot/internal/repository"
)

// MemeService is the entry point for transports: registration, the action
// lock and meme requests.
type MemeService struct {
	delivery      *DeliveryService
	locks         *LockService
	registrations *repository.RegistrationRepository
	logger        *logger.Logger
}

// MemeResult is what a transport needs to send a meme.
type MemeResult struct {
	ImagePath string          `json:"image_path"`
	FromCache bool            `json:"from_cache"`
	URL       string          `json:"url"`
	Title     string          `json:"title"`
	Source    string          `json:"source"`
	Language  domain.Language `json:"language,omitempty"`
}

// NewMemeService creates a new meme service
func NewMemeService(
	delivery *DeliveryService,
	locks *LockService,
	registrations *repository.RegistrationRepository,
	log *logger.Logger,
) *MemeService {
	return &MemeService{
		delivery:      delivery,
		locks:         locks,
		registrations: registrations,
		logger:        log,
	}
}

// RequestMeme serves a meme identity has never received.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - identity: requester scope.
//   - keywords: search terms, may be empty.
//   - lang: language track, may be empty.
//
// Returns:
//   - *MemeResult: the meme to send.
//   - error: ErrNotRegistered, ErrNoCandidateFound,
//     ErrExternalFetchExhausted, or a wrapped internal error.
func (s *MemeService) RequestMeme(ctx context.Context, identity domain.Identity, keywords string, lang domain.Language) (*MemeResult, error) {
	registered, err := s.IsRegistered(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, ErrNotRegistered
	}

	d, err := s.delivery.FetchFor(ctx, identity, keywords, lang)
	if err != nil {
		if errors.Is(err, ErrNoCandidateFound) || errors.Is(err, ErrExternalFetchExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("request meme: %w", err)
	}

	return &MemeResult{
		ImagePath: d.Path,
		FromCache: d.FromCache,
		URL:       d.Asset.URL,
		Title:     d.Asset.Title,
		Source:    d.Asset.Source,
		Language:  lang,
	}, nil
}

// RandomMeme handles the "random" choice of mode selection.
func (s *MemeService) RandomMeme(ctx context.Context, r domain.Requester, lang domain.Language) (*MemeResult, error) {
	userID, chatID := r.LockKey()
	if err := s.locks.ChooseRandom(ctx, userID, chatID); err != nil {
		return nil, err
	}
	lang, err := s.memeLanguage(ctx, r, lang)
	if err != nil {
		return nil, err
	}
	return s.RequestMeme(ctx, r.Identity(), "", lang)
}

// SubmitKeywords handles a free-text message. It reports false when the
// requester's lock was not waiting for keywords; the message is then not
// a meme request.
func (s *MemeService) SubmitKeywords(ctx context.Context, r domain.Requester, keywords string, lang domain.Language) (*MemeResult, bool, error) {
	userID, chatID := r.LockKey()
	ok, err := s.locks.ConsumeKeywords(ctx, userID, chatID)
	if err != nil || !ok {
		return nil, false, err
	}
	lang, err = s.memeLanguage(ctx, r, lang)
	if err != nil {
		return nil, true, err
	}
	res, err := s.RequestMeme(ctx, r.Identity(), keywords, lang)
	return res, true, err
}

// StartSession opens the requester's lock.
func (s *MemeService) StartSession(ctx context.Context, r domain.Requester) error {
	userID, chatID := r.LockKey()
	return s.locks.Start(ctx, userID, chatID)
}

// SelectMode moves the requester to mode selection.
func (s *MemeService) SelectMode(ctx context.Context, r domain.Requester) error {
	userID, chatID := r.LockKey()
	return s.locks.BeginSelection(ctx, r.Identity(), userID, chatID)
}

// AskKeywords takes the keyword branch of mode selection.
func (s *MemeService) AskKeywords(ctx context.Context, r domain.Requester) error {
	userID, chatID := r.LockKey()
	return s.locks.ChooseKeywords(ctx, userID, chatID)
}

// LockState returns the requester's lock code.
func (s *MemeService) LockState(ctx context.Context, userID, chatID int64) (domain.ActionCode, error) {
	return s.locks.State(ctx, userID, chatID)
}

// AdvanceLock is a raw compare-and-swap on the lock.
func (s *MemeService) AdvanceLock(ctx context.Context, userID, chatID int64, expected, next domain.ActionCode) (bool, error) {
	return s.locks.Advance(ctx, userID, chatID, expected, next)
}

// ClearLock drops the lock.
func (s *MemeService) ClearLock(ctx context.Context, userID, chatID int64) error {
	return s.locks.Cancel(ctx, userID, chatID)
}

// IsRegistered reports whether identity has registered.
func (s *MemeService) IsRegistered(ctx context.Context, identity domain.Identity) (bool, error) {
	return s.registrations.Exists(ctx, identity)
}

// Register stores identity with its interface language.
func (s *MemeService) Register(ctx context.Context, identity domain.Identity, lang domain.Language) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	created, err := s.registrations.Create(ctx, identity, lang)
	if err != nil {
		return err
	}
	if !created {
		return ErrAlreadyRegistered
	}
	logger.FromContextOr(ctx, s.logger).
		WithField(logger.FieldIdentity, identity.String()).
		WithField(logger.FieldLanguage, lang).
		Info("Registered")
	return nil
}

// SetLanguage changes a registered identity's interface language.
func (s *MemeService) SetLanguage(ctx context.Context, identity domain.Identity, lang domain.Language) error {
	registered, err := s.IsRegistered(ctx, identity)
	if err != nil {
		return err
	}
	if !registered {
		return ErrNotRegistered
	}
	return s.registrations.SetLanguage(ctx, identity, lang)
}

// LanguageFor returns the interface language for r: the chat's setting
// when the chat is registered, then the user's, then LanguagePrimary.
func (s *MemeService) LanguageFor(ctx context.Context, r domain.Requester) (domain.Language, error) {
	candidates := []domain.Identity{domain.UserIdentity(r.UserID)}
	if r.ChatID != 0 {
		candidates = append([]domain.Identity{domain.ChatIdentity(r.ChatID)}, candidates...)
	}
	for _, id := range candidates {
		reg, err := s.registrations.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if reg != nil && reg.Language != "" {
			return reg.Language, nil
		}
	}
	return domain.LanguagePrimary, nil
}

// MemeLanguage resolves the meme language for a request: lang when given,
// otherwise the opposite of the requester's interface language.
func (s *MemeService) MemeLanguage(ctx context.Context, r domain.Requester, lang domain.Language) (domain.Language, error) {
	return s.memeLanguage(ctx, r, lang)
}

func (s *MemeService) memeLanguage(ctx context.Context, r domain.Requester, lang domain.Language) (domain.Language, error) {
	if lang != "" {
		return lang, nil
	}
	ui, err := s.LanguageFor(ctx, r)
	if err != nil {
		return "", err
	}
	return ui.Opposite(), nil
}
