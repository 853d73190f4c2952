package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/store"
)

// systemAuthor is the conversation author recorded for automatic entries.
const systemAuthor = "system"

// ReportService is the lifecycle engine for feedback and lost/found
// reports: creation validation, the status state machine, whitelisted
// field updates, and conversation-thread appends. All authorization and
// transition checks on mutation run inside the store's atomic mutator so
// racing writers validate against the value read at their own turn.
type ReportService struct {
	reports   store.ReportStore
	directory store.DirectoryStore
	logger    *zap.SugaredLogger
}

// NewReportService creates a new report service.
func NewReportService(reports store.ReportStore, directory store.DirectoryStore, logger *zap.SugaredLogger) *ReportService {
	return &ReportService{reports: reports, directory: directory, logger: logger}
}

// validTransition is the status state machine. Feedback moves
// Pending -> InProgress -> Closed with the Pending -> Closed shortcut;
// found items move unclaimed -> claimed; lost items have no machine.
// Same-state "transitions" are not in the table.
func validTransition(kind models.ReportKind, from, to string) bool {
	switch kind {
	case models.KindFeedback:
		switch from {
		case models.StatusPending:
			return to == models.StatusInProgress || to == models.StatusClosed
		case models.StatusInProgress:
			return to == models.StatusClosed
		}
		return false
	case models.KindFound:
		return from == models.StatusUnclaimed && to == models.StatusClaimed
	}
	return false
}

// Create validates the per-kind required fields, stamps authorship and
// submission time, and persists the report.
func (s *ReportService) Create(ctx context.Context, actor Identity, req *models.CreateReportRequest) (*models.Report, error) {
	if !models.ValidKind(req.Kind) {
		return nil, apperrors.Validation("kind")
	}

	var missing []string
	blank := func(field, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	switch req.Kind {
	case models.KindFeedback:
		blank("route", req.Route)
		blank("busNo", req.BusNo)
		blank("issueCategory", req.IssueCategory)
		if len(req.Attachments) == 0 {
			missing = append(missing, "attachments")
		}
	default: // lost / found
		blank("item", req.Item)
		blank("route", req.Route)
		blank("description", req.Description)
	}
	if len(missing) > 0 {
		return nil, apperrors.Validation(missing...)
	}

	status := ""
	switch req.Kind {
	case models.KindFeedback:
		status = models.StatusPending
	case models.KindFound:
		status = models.StatusUnclaimed
		if req.Status != "" {
			if req.Status != models.StatusUnclaimed && req.Status != models.StatusClaimed {
				return nil, apperrors.Validation("status")
			}
			status = req.Status
		}
	}

	// Soft referential check: an unknown route is logged, never fatal.
	if _, err := s.directory.GetRoute(ctx, req.Route); errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warnw("Report references unknown route", "route", req.Route, "kind", req.Kind)
	}

	report := &models.Report{
		ID:            uuid.New(),
		Kind:          req.Kind,
		AuthorID:      actor.UserID,
		AuthorName:    actor.Name,
		Route:         req.Route,
		BusNo:         req.BusNo,
		IssueCategory: req.IssueCategory,
		Item:          req.Item,
		Description:   req.Description,
		Details:       req.Details,
		Attachments:   req.Attachments,
		Status:        status,
		SubmittedOn:   time.Now().UTC(),
		Conversation:  []models.ConversationEntry{},
	}
	if report.Attachments == nil {
		report.Attachments = []models.AttachmentRef{}
	}

	if err := s.reports.Insert(ctx, report); err != nil {
		return nil, err
	}

	s.logger.Infow("Report created", "id", report.ID, "kind", report.Kind, "route", report.Route)
	return report, nil
}

// Get returns a single report, visible to its author and to admins.
func (s *ReportService) Get(ctx context.Context, actor Identity, id uuid.UUID) (*models.Report, error) {
	report, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && report.AuthorID != actor.UserID {
		return nil, apperrors.ErrForbidden
	}
	return report, nil
}

// UpdateStatus applies one transition from the state machine. Admins may
// perform any defined transition; the owning user may only self-resolve to
// Closed. Closing records the resolution atomically with the status, and
// every successful transition appends one system conversation entry.
func (s *ReportService) UpdateStatus(ctx context.Context, id uuid.UUID, actor Identity, newStatus, resolutionNote string) (*models.Report, error) {
	if newStatus == "" {
		return nil, apperrors.Validation("status")
	}
	report, err := s.reports.Update(ctx, id, func(r *models.Report) error {
		switch {
		case actor.IsAdmin():
		case r.AuthorID == actor.UserID:
			if newStatus != models.StatusClosed {
				return apperrors.ErrForbidden
			}
		default:
			return apperrors.ErrForbidden
		}
		if !validTransition(r.Kind, r.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, r.Status, newStatus)
		}
		from := r.Status
		r.Status = newStatus
		if newStatus == models.StatusClosed {
			r.Resolution = &models.Resolution{
				Text:       resolutionNote,
				ResolvedBy: actor.Name,
				ResolvedOn: time.Now().UTC(),
			}
		}
		r.Conversation = append(r.Conversation, models.ConversationEntry{
			AuthorName: systemAuthor,
			Message:    fmt.Sprintf("Status changed from %s to %s by %s", from, newStatus, actor.Name),
			Timestamp:  time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("Report status updated", "id", id, "status", newStatus, "by", actor.UserID)
	return report, nil
}

// fieldWhitelists names the only patchable fields per kind. Everything
// else in a patch is dropped, never applied: authorship, submission time
// and the conversation cannot be overwritten through a field update.
var fieldWhitelists = map[models.ReportKind]map[string]bool{
	models.KindFeedback: {"status": true, "description": true, "route": true, "busNo": true, "issueCategory": true},
	models.KindLost:     {"status": true, "description": true, "route": true, "item": true},
	models.KindFound:    {"status": true, "description": true, "route": true, "item": true},
}

// UpdateFields applies an admin-only whitelisted patch. A "status" key is
// validated against the same transition table as UpdateStatus, so the
// whitelist cannot bypass the state machine.
func (s *ReportService) UpdateFields(ctx context.Context, id uuid.UUID, actor Identity, patch map[string]interface{}) (*models.Report, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	report, err := s.reports.Update(ctx, id, func(r *models.Report) error {
		allowed := fieldWhitelists[r.Kind]
		for key, raw := range patch {
			if !allowed[key] {
				continue
			}
			value, ok := raw.(string)
			if !ok {
				return apperrors.Validation(key)
			}
			switch key {
			case "status":
				if !validTransition(r.Kind, r.Status, value) {
					return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, r.Status, value)
				}
				r.Status = value
			case "description":
				r.Description = value
			case "route":
				r.Route = value
			case "busNo":
				r.BusNo = value
			case "issueCategory":
				r.IssueCategory = value
			case "item":
				r.Item = value
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("Report fields updated", "id", id, "by", actor.UserID)
	return report, nil
}

// AppendConversation adds one entry to the report's thread. The thread is
// append-only and ordered by arrival; once a feedback report is Closed,
// further appends are rejected.
func (s *ReportService) AppendConversation(ctx context.Context, id uuid.UUID, actor Identity, req *models.ConversationRequest) (*models.Report, error) {
	if strings.TrimSpace(req.Message) == "" && req.Attachment == nil {
		return nil, apperrors.Validation("message")
	}
	report, err := s.reports.Update(ctx, id, func(r *models.Report) error {
		if !actor.IsAdmin() && r.AuthorID != actor.UserID {
			return apperrors.ErrForbidden
		}
		if r.Kind == models.KindFeedback && r.Status == models.StatusClosed {
			return apperrors.ErrReportClosed
		}
		r.Conversation = append(r.Conversation, models.ConversationEntry{
			AuthorName: actor.Name,
			Message:    req.Message,
			Attachment: req.Attachment,
			Timestamp:  time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Delete hard-deletes a report. Only its author or an admin may delete;
// attached blobs become orphans by design of the blob collaborator.
func (s *ReportService) Delete(ctx context.Context, id uuid.UUID, actor Identity) error {
	report, err := s.reports.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && report.AuthorID != actor.UserID {
		return apperrors.ErrForbidden
	}
	if err := s.reports.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("Report deleted", "id", id, "by", actor.UserID)
	return nil
}

// List returns reports visible to the actor: everything for admins,
// own-authored otherwise. Ordering is submittedOn descending with ties
// broken by creation sequence.
func (s *ReportService) List(ctx context.Context, actor Identity, filter store.ReportFilter) ([]models.Report, error) {
	if !actor.IsAdmin() {
		filter.AuthorID = actor.UserID
	}
	return s.reports.List(ctx, filter)
}
