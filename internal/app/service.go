package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"renoquote/api/internal/config"
	"renoquote/api/internal/parser"
	"renoquote/api/internal/pdfgen"
	"renoquote/api/internal/quote"
	"renoquote/api/internal/search"
	"renoquote/api/internal/store"
)

// InboundMessage is the transport webhook payload: one contractor message on
// a channel thread, as text or a voice note URL.
type InboundMessage struct {
	ThreadID    string `json:"threadId"`
	SenderPhone string `json:"senderPhone"`
	Text        string `json:"text,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
}

// Reply is what the external dispatcher sends back on the thread. The service
// never talks to the transport itself.
type Reply struct {
	ThreadID      string `json:"threadId"`
	Text          string `json:"text"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

// ExtractInput is the direct (non-webhook) entry into the extraction pipeline.
type ExtractInput struct {
	ContractorID string `json:"contractorId"`
	ThreadID     string `json:"threadId"`
	Transcript   string `json:"transcript"`
}

const (
	replyTechnicalProblem = "We're having a technical moment on our end. Please try again in a minute, or give us a call."
	replyNoItems          = "I couldn't find any billable items in that message. Could you be more specific about the work and prices?"
	replyConfirmReminder  = "I didn't catch that. Reply yes to confirm the pending changes, or tell me what to change instead."

	presignTTL = 7 * 24 * time.Hour
)

var finalizePhrases = []string{"send it", "looks good", "perfect"}

var affirmatives = map[string]struct{}{
	"yes":     {},
	"yep":     {},
	"yeah":    {},
	"y":       {},
	"ok":      {},
	"okay":    {},
	"confirm": {},
	"sure":    {},
	"👍":       {},
}

type dataStore interface {
	CreateQuoteWithItems(ctx context.Context, q quote.Quote, items []quote.Item) error
	GetQuote(ctx context.Context, id string) (quote.Quote, error)
	ReplaceItems(ctx context.Context, quoteID string, expectedVersion int, items []quote.Item) (int, error)
	ItemsForVersion(ctx context.Context, quoteID string, version int) ([]quote.Item, error)
	SetPDFURL(ctx context.Context, quoteID string, version int, pdfURL string) error
	MarkQuoteSent(ctx context.Context, quoteID string) error
	AppendEdit(ctx context.Context, e quote.Edit) error
	ListEdits(ctx context.Context, quoteID string) ([]quote.Edit, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveSession(ctx context.Context, sess quote.ReviewSession) error
	ActiveSessionByThread(ctx context.Context, threadID string) (quote.ReviewSession, error)
	FinalizeSession(ctx context.Context, threadID string) error
}

type artifactStore interface {
	Put(ctx context.Context, quoteID string, version int, data []byte) (string, error)
	PresignedURL(ctx context.Context, quoteID string, version int, expiry time.Duration) (string, error)
}

type quoteSearcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexQuote(q quote.Quote)
}

type mailer interface {
	IsConfigured() bool
	SendQuoteEmail(to, customerName, project, total, pdfURL string) error
}

type Service struct {
	cfg         config.Config
	store       dataStore
	sessions    sessionStore
	parser      parser.CommandParser
	extractor   parser.Extractor
	transcriber parser.Transcriber
	artifacts   artifactStore
	search      quoteSearcher
	email       mailer

	// swapped out in tests; chromedp needs a real browser
	generate func(q quote.Quote, items []quote.Item) (*pdfgen.Result, error)
}

func New(cfg config.Config, dataStore dataStore, sessions sessionStore, cmdParser parser.CommandParser, extractor parser.Extractor, transcriber parser.Transcriber, artifacts artifactStore, searchSvc quoteSearcher, emailSvc mailer) *Service {
	return &Service{
		cfg:         cfg,
		store:       dataStore,
		sessions:    sessions,
		parser:      cmdParser,
		extractor:   extractor,
		transcriber: transcriber,
		artifacts:   artifacts,
		search:      searchSvc,
		email:       emailSvc,
		generate:    pdfgen.Generate,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// HandleInbound runs one inbound message through the review state machine.
// It always returns a reply for the dispatcher, even when it also returns an
// error; the contractor is never left without a response.
func (s *Service) HandleInbound(ctx context.Context, msg InboundMessage) (Reply, error) {
	transcript := strings.TrimSpace(msg.Text)
	if msg.AudioURL != "" {
		if s.transcriber == nil {
			return s.reply(msg.ThreadID, "Voice notes are not enabled right now. Please type your changes instead."), nil
		}
		text, err := s.transcriber.Transcribe(ctx, msg.AudioURL)
		if err != nil {
			log.Printf("app: transcribe %s: %v", msg.ThreadID, err)
			return s.reply(msg.ThreadID, "I couldn't make out that voice note. Could you try again or type it out?"), nil
		}
		transcript = strings.TrimSpace(text)
	}
	if transcript == "" {
		return s.reply(msg.ThreadID, replyConfirmReminder), nil
	}

	sess, err := s.sessions.ActiveSessionByThread(ctx, msg.ThreadID)
	if errors.Is(err, store.ErrNoActiveSession) {
		return s.startQuoteFromMessage(ctx, msg, transcript)
	}
	if err != nil {
		return s.reply(msg.ThreadID, replyTechnicalProblem), fmt.Errorf("lookup session: %w", err)
	}

	switch sess.State {
	case quote.StateReviewing:
		return s.handleReviewing(ctx, sess, transcript)
	case quote.StateConfirming:
		return s.handleConfirming(ctx, sess, transcript)
	default:
		return s.reply(msg.ThreadID, replyTechnicalProblem),
			domainError(http.StatusInternalServerError, "INVALID_TRANSITION", fmt.Sprintf("session in unexpected state %s", sess.State), nil)
	}
}

// startQuoteFromMessage is the no-session path: the message is treated as a
// job description and run through the extraction pipeline.
func (s *Service) startQuoteFromMessage(ctx context.Context, msg InboundMessage, transcript string) (Reply, error) {
	q, items, err := s.ExtractQuote(ctx, ExtractInput{
		ContractorID: msg.SenderPhone,
		ThreadID:     msg.ThreadID,
		Transcript:   transcript,
	})
	if err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "EXTRACTION_EMPTY" {
			return s.reply(msg.ThreadID, replyNoItems), nil
		}
		return s.reply(msg.ThreadID, replyTechnicalProblem), err
	}

	summary := quote.FormatQuoteSummary(q, items) + "\nTell me what to change, or reply \"send it\" when it's ready."
	r := s.reply(msg.ThreadID, summary)
	r.AttachmentURL = q.PDFURL
	return r, nil
}

func (s *Service) handleReviewing(ctx context.Context, sess quote.ReviewSession, transcript string) (Reply, error) {
	if isFinalizePhrase(transcript) {
		return s.finalize(ctx, sess)
	}

	items, err := s.store.ItemsForVersion(ctx, sess.QuoteID, sess.CurrentVersion)
	if err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("load items: %w", err)
	}

	commands := s.parser.Parse(ctx, transcript, items)
	if len(commands) == 0 {
		// Unrecognized input never changes state.
		return s.reply(sess.ThreadID, quote.FormatConfirmation(nil, items)), nil
	}

	// Dry-run against the current ledger. Ambiguous targets come back as a
	// clarifying question instead of silently picking a match.
	preview := quote.Apply(items, commands)
	for _, note := range preview.Notes {
		if note.Kind == quote.NoteAmbiguous {
			return s.reply(sess.ThreadID, note.ClarifyQuestion()), nil
		}
	}

	sess.State = quote.StateConfirming
	sess.PendingChanges = commands
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("save session: %w", err)
	}
	return s.reply(sess.ThreadID, quote.FormatConfirmation(commands, items)), nil
}

func (s *Service) handleConfirming(ctx context.Context, sess quote.ReviewSession, transcript string) (Reply, error) {
	if isAffirmative(transcript) {
		return s.confirmPending(ctx, sess)
	}

	// A new transcript instead of a confirmation re-parses against the
	// persisted items, never against the unconfirmed pending set.
	items, err := s.store.ItemsForVersion(ctx, sess.QuoteID, sess.CurrentVersion)
	if err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("load items: %w", err)
	}

	commands := s.parser.Parse(ctx, transcript, items)
	if len(commands) == 0 {
		return s.reply(sess.ThreadID, replyConfirmReminder), nil
	}

	preview := quote.Apply(items, commands)
	for _, note := range preview.Notes {
		if note.Kind == quote.NoteAmbiguous {
			return s.reply(sess.ThreadID, note.ClarifyQuestion()), nil
		}
	}

	sess.PendingChanges = commands
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("save session: %w", err)
	}
	return s.reply(sess.ThreadID, quote.FormatConfirmation(commands, items)), nil
}

// confirmPending commits the pending command batch: apply to the persisted
// ledger, bump the version with a compare-and-swap, append the audit row,
// then attempt regeneration. Items and audit always land before the PDF is
// tried; a rendering failure never rolls back the version bump.
func (s *Service) confirmPending(ctx context.Context, sess quote.ReviewSession) (Reply, error) {
	if len(sess.PendingChanges) == 0 {
		return s.reply(sess.ThreadID, replyConfirmReminder),
			domainError(http.StatusConflict, "INVALID_TRANSITION", "confirmation received with no pending changes", nil)
	}

	items, err := s.store.ItemsForVersion(ctx, sess.QuoteID, sess.CurrentVersion)
	if err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("load items: %w", err)
	}

	applied := quote.Apply(items, sess.PendingChanges)

	newVersion, err := s.store.ReplaceItems(ctx, sess.QuoteID, sess.CurrentVersion, applied.Items)
	if errors.Is(err, store.ErrVersionConflict) {
		// Stale session: someone else moved the quote forward. Resync and
		// drop the pending batch rather than applying it to the wrong base.
		q, getErr := s.store.GetQuote(ctx, sess.QuoteID)
		if getErr != nil {
			return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("resync after conflict: %w", getErr)
		}
		sess.State = quote.StateReviewing
		sess.PendingChanges = nil
		sess.CurrentVersion = q.Version
		if saveErr := s.sessions.SaveSession(ctx, sess); saveErr != nil {
			return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("save session after conflict: %w", saveErr)
		}
		current, itemsErr := s.store.ItemsForVersion(ctx, sess.QuoteID, q.Version)
		if itemsErr != nil {
			return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("load items after conflict: %w", itemsErr)
		}
		text := "The quote changed since your last message. Here is the latest:\n" + quote.FormatQuoteSummary(q, current)
		return s.reply(sess.ThreadID, text), nil
	}
	if err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("replace items: %w", err)
	}

	edit := quote.Edit{
		QuoteID:         sess.QuoteID,
		VersionFrom:     sess.CurrentVersion,
		VersionTo:       newVersion,
		EditType:        quote.EditType(sess.PendingChanges),
		RawCommands:     sess.PendingChanges,
		ConfidenceScore: quote.AverageConfidence(sess.PendingChanges),
	}
	if err := s.store.AppendEdit(ctx, edit); err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("append edit: %w", err)
	}

	sess.State = quote.StateReviewing
	sess.PendingChanges = nil
	sess.CurrentVersion = newVersion
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("save session: %w", err)
	}

	q, err := s.store.GetQuote(ctx, sess.QuoteID)
	if err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("reload quote: %w", err)
	}

	summary := quote.FormatQuoteSummary(q, applied.Items)
	pdfURL, regenErr := s.regeneratePDF(ctx, q, applied.Items)
	if regenErr != nil {
		log.Printf("app: regenerate quote %s v%d: %v", q.ID, q.Version, regenErr)
		return s.reply(sess.ThreadID, summary+"\n(The updated PDF is taking a moment; I'll keep the numbers above as the source of truth.)"), nil
	}

	r := s.reply(sess.ThreadID, summary)
	r.AttachmentURL = pdfURL
	return r, nil
}

func (s *Service) finalize(ctx context.Context, sess quote.ReviewSession) (Reply, error) {
	if err := s.store.MarkQuoteSent(ctx, sess.QuoteID); err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("mark sent: %w", err)
	}
	if err := s.sessions.FinalizeSession(ctx, sess.ThreadID); err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("finalize session: %w", err)
	}

	q, err := s.store.GetQuote(ctx, sess.QuoteID)
	if err != nil {
		return s.reply(sess.ThreadID, replyTechnicalProblem), fmt.Errorf("reload quote: %w", err)
	}
	if s.search != nil {
		s.search.IndexQuote(q)
	}
	s.notifyCustomer(q)

	text := fmt.Sprintf("Done. Quote v%d is marked as sent (total $%.2f).", q.Version, q.TotalAmount)
	r := s.reply(sess.ThreadID, text)
	r.AttachmentURL = q.PDFURL
	return r, nil
}

func (s *Service) notifyCustomer(q quote.Quote) {
	if s.email == nil || !s.email.IsConfigured() || q.CustomerEmail == "" || q.PDFURL == "" {
		return
	}
	go func() {
		total := fmt.Sprintf("$%.2f", q.TotalAmount)
		if err := s.email.SendQuoteEmail(q.CustomerEmail, q.CustomerName, q.ProjectDescription, total, q.PDFURL); err != nil {
			log.Printf("app: send quote email for %s: %v", q.ID, err)
		}
	}()
}

// ExtractQuote runs a transcript through the extractor and persists the
// resulting version-1 quote, item ledger, review session, and first PDF.
func (s *Service) ExtractQuote(ctx context.Context, input ExtractInput) (quote.Quote, []quote.Item, error) {
	extraction := s.extractor.Extract(ctx, input.Transcript)
	if len(extraction.Items) == 0 {
		return quote.Quote{}, nil, domainError(http.StatusUnprocessableEntity, "EXTRACTION_EMPTY", "no billable items found in transcript", nil)
	}

	items := make([]quote.Item, len(extraction.Items))
	copy(items, extraction.Items)
	for i := range items {
		if items[i].Quantity <= 0 {
			items[i].Quantity = 1
		}
		if items[i].Unit == "" {
			items[i].Unit = "each"
		}
		if items[i].Category == "" {
			items[i].Category = quote.CategoryOther
		}
		items[i].DisplayOrder = i
		items[i].Recalc()
	}

	now := time.Now()
	q := quote.Quote{
		ID:                 "qt_" + uuid.NewString(),
		ContractorID:       input.ContractorID,
		CustomerName:       extraction.CustomerName,
		CustomerPhone:      extraction.CustomerPhone,
		CustomerAddress:    extraction.CustomerAddress,
		CustomerEmail:      extraction.CustomerEmail,
		ProjectDescription: extraction.ProjectDescription,
		Status:             quote.StatusDraft,
		Version:            1,
		TotalAmount:        quote.Total(items),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.CreateQuoteWithItems(ctx, q, items); err != nil {
		return quote.Quote{}, nil, fmt.Errorf("create quote: %w", err)
	}

	if input.ThreadID != "" {
		sess := quote.ReviewSession{
			QuoteID:        q.ID,
			ContractorID:   input.ContractorID,
			ThreadID:       input.ThreadID,
			State:          quote.StateReviewing,
			CurrentVersion: 1,
		}
		if err := s.sessions.SaveSession(ctx, sess); err != nil {
			return quote.Quote{}, nil, fmt.Errorf("save session: %w", err)
		}
	}

	if s.search != nil {
		s.search.IndexQuote(q)
	}

	if pdfURL, err := s.regeneratePDF(ctx, q, items); err != nil {
		log.Printf("app: first pdf for quote %s: %v", q.ID, err)
	} else {
		q.PDFURL = pdfURL
	}
	return q, items, nil
}

// RegenerateQuote rebuilds the artifact for the current version from the
// persisted ledger. Used to retry after a regeneration failure; no parsing
// or version bump happens here.
func (s *Service) RegenerateQuote(ctx context.Context, quoteID string) (quote.Quote, error) {
	q, err := s.store.GetQuote(ctx, quoteID)
	if err != nil {
		return quote.Quote{}, err
	}
	items, err := s.store.ItemsForVersion(ctx, quoteID, q.Version)
	if err != nil {
		return quote.Quote{}, err
	}
	pdfURL, err := s.regeneratePDF(ctx, q, items)
	if err != nil {
		return quote.Quote{}, domainError(http.StatusBadGateway, "REGENERATION_FAILED", "document regeneration failed", err.Error())
	}
	q.PDFURL = pdfURL
	return q, nil
}

// regeneratePDF renders, stores, and links the artifact for (quote, version).
// Failure here is always non-fatal to the edit flow; the persisted ledger is
// the state of record.
func (s *Service) regeneratePDF(ctx context.Context, q quote.Quote, items []quote.Item) (string, error) {
	result, err := s.generate(q, items)
	if err != nil {
		return "", fmt.Errorf("render pdf: %w", err)
	}
	if _, err := s.artifacts.Put(ctx, q.ID, q.Version, result.Data); err != nil {
		return "", fmt.Errorf("store pdf: %w", err)
	}
	pdfURL, err := s.artifacts.PresignedURL(ctx, q.ID, q.Version, presignTTL)
	if err != nil {
		return "", fmt.Errorf("presign pdf: %w", err)
	}
	if err := s.store.SetPDFURL(ctx, q.ID, q.Version, pdfURL); err != nil {
		return "", fmt.Errorf("link pdf: %w", err)
	}
	return pdfURL, nil
}

func (s *Service) GetQuote(ctx context.Context, id string) (quote.Quote, []quote.Item, error) {
	q, err := s.store.GetQuote(ctx, id)
	if err != nil {
		return quote.Quote{}, nil, err
	}
	items, err := s.store.ItemsForVersion(ctx, id, q.Version)
	if err != nil {
		return quote.Quote{}, nil, err
	}
	return q, items, nil
}

func (s *Service) QuoteItems(ctx context.Context, id string, version int) ([]quote.Item, error) {
	if version <= 0 {
		q, err := s.store.GetQuote(ctx, id)
		if err != nil {
			return nil, err
		}
		version = q.Version
	}
	return s.store.ItemsForVersion(ctx, id, version)
}

func (s *Service) QuoteEdits(ctx context.Context, id string) ([]quote.Edit, error) {
	if _, err := s.store.GetQuote(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEdits(ctx, id)
}

func (s *Service) SearchQuotes(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

func (s *Service) reply(threadID, text string) Reply {
	return Reply{ThreadID: threadID, Text: text}
}

func isFinalizePhrase(text string) bool {
	normalized := normalize(text)
	for _, phrase := range finalizePhrases {
		if normalized == phrase {
			return true
		}
	}
	return false
}

func isAffirmative(text string) bool {
	_, ok := affirmatives[normalize(text)]
	return ok
}

func normalize(text string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!,")
}
