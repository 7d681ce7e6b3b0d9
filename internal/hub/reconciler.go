package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"agora/internal/accounts"
	"agora/internal/cities"
	"agora/internal/notify"
	"agora/internal/org"
	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/audit"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
	"agora/pkg/requestcontext"
)

// downloadConcurrency bounds parallel registry file fetches per run.
const downloadConcurrency = 4

// ProfileSource is the registry surface the reconciler consumes.
type ProfileSource interface {
	MyProfile(ctx context.Context, token string) (Profile, error)
	Organization(ctx context.Context, externalID int) (Profile, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// OrgStore is the slice of organization persistence the reconciler writes.
type OrgStore interface {
	FindByID(ctx context.Context, orgID id.OrgID) (org.Organization, error)
	FindByExternalID(ctx context.Context, externalID int) (org.Organization, error)
	Update(ctx context.Context, o org.Organization) error
}

// Roster resolves notification recipients.
type Roster interface {
	GroupEmails(ctx context.Context, groups ...accounts.Group) ([]string, error)
}

// Result is the reconciliation summary. Errors block auto-acceptance;
// warnings do not.
type Result struct {
	Errors   []string
	Warnings []string
}

// Clean reports whether the run finished without errors.
func (r Result) Clean() bool { return len(r.Errors) == 0 }

// Reconciler merges external registry profiles into local organization
// records, accumulating partial failures instead of aborting: whatever
// succeeded still commits.
type Reconciler struct {
	source ProfileSource
	files  FileStore
	store  OrgStore
	cities cities.Store
	runner tx.Runner
	roster Roster

	logger    *slog.Logger
	publisher audit.Publisher
	mailer    notify.Mailer
	metrics   *org.Metrics
	tracer    trace.Tracer
}

type ReconcilerOption func(*Reconciler)

func WithLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) ReconcilerOption {
	return func(r *Reconciler) { r.publisher = publisher }
}

func WithMailer(mailer notify.Mailer) ReconcilerOption {
	return func(r *Reconciler) { r.mailer = mailer }
}

func WithMetrics(m *org.Metrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

func NewReconciler(source ProfileSource, files FileStore, store OrgStore,
	cityStore cities.Store, runner tx.Runner, roster Roster,
	opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		source: source,
		files:  files,
		store:  store,
		cities: cityStore,
		runner: runner,
		roster: roster,
		tracer: otel.Tracer("agora/hub"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile merges the external profile of one organization. With a token
// the profile-scoped endpoint is used, otherwise the service credential
// and the organization's external id.
func (r *Reconciler) Reconcile(ctx context.Context, orgID id.OrgID, token string) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "hub.reconcile",
		trace.WithAttributes(attribute.String("org.id", orgID.String())))
	defer span.End()

	o, err := r.store.FindByID(ctx, orgID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Result{}, dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "load organization")
	}

	o.SyncStartedAt = requestcontext.Now(ctx)

	profile, err := r.fetchProfile(ctx, o, token)
	if err != nil {
		return Result{}, err
	}

	var res Result
	r.applyGeneral(ctx, &o, profile, &res)
	r.applyLegal(&o, profile)
	r.mirrorFiles(ctx, &o, profile, &res)
	o.SyncedAt = requestcontext.Now(ctx)
	r.settleStatus(&o, res)

	err = r.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.store.Update(ctx, o); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "commit reconciliation")
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("sync.errors", len(res.Errors)),
		attribute.Int("sync.warnings", len(res.Warnings)),
	)
	if r.logger != nil {
		r.logger.Info("organization reconciled",
			"org_id", o.ID.String(),
			"status", string(o.Status),
			"errors", len(res.Errors),
			"warnings", len(res.Warnings))
	}
	r.recordOutcome(ctx, o, res)
	return res, nil
}

// ReconcileExternal resolves the local record by external id first, for
// webhook-style triggers from the registry side.
func (r *Reconciler) ReconcileExternal(ctx context.Context, externalID int) (Result, error) {
	o, err := r.store.FindByExternalID(ctx, externalID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Result{}, dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "load organization")
	}
	return r.Reconcile(ctx, o.ID, "")
}

func (r *Reconciler) fetchProfile(ctx context.Context, o org.Organization, token string) (Profile, error) {
	if token != "" {
		p, err := r.source.MyProfile(ctx, token)
		if err != nil {
			return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "fetch registry profile")
		}
		return p, nil
	}
	if o.ExternalOrgID == 0 {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "organization is not linked to the registry")
	}
	p, err := r.source.Organization(ctx, o.ExternalOrgID)
	if err != nil {
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "fetch registry organization")
	}
	return p, nil
}

// applyGeneral maps the identity section. A city the local reference data
// does not know leaves city and county untouched and records one error.
func (r *Reconciler) applyGeneral(ctx context.Context, o *org.Organization, p Profile, res *Result) {
	setIf(&o.Name, p.General.Name)
	setIf(&o.Address, p.General.Address)
	setIf(&o.Email, p.General.Email)
	setIf(&o.Phone, p.General.Phone)
	setIf(&o.Description, p.General.Description)
	setIf(&o.RegistrationNumber, p.General.RegistrationNumber)

	if p.General.City == "" {
		return
	}
	city, err := r.cities.FindByName(ctx, p.General.City)
	if errors.Is(err, sentinel.ErrNotFound) {
		res.Errors = append(res.Errors, fmt.Sprintf("city %q not found locally", p.General.City))
		return
	}
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("resolve city %q: %v", p.General.City, err))
		return
	}
	o.City = city.Name
	o.County = city.County
}

func (r *Reconciler) applyLegal(o *org.Organization, p Profile) {
	setIf(&o.LegalRepresentativeName, p.Legal.LegalRepresentative.FullName)
	setIf(&o.BoardCouncil, p.Legal.BoardCouncil())
}

// fileField binds one registry URL to one local document field.
type fileField struct {
	name string
	url  string
	get  func(*org.Organization) *string
}

// mirrorFiles re-fetches each document whose external filename changed
// since the last run, deletes documents the registry dropped, and leaves
// unchanged documents alone. Downloads run concurrently; record mutation
// stays sequential.
func (r *Reconciler) mirrorFiles(ctx context.Context, o *org.Organization, p Profile, res *Result) {
	fields := []fileField{
		{"logo", p.General.LogoURL, func(o *org.Organization) *string { return &o.Logo }},
		{"statute", p.Legal.StatuteURL, func(o *org.Organization) *string { return &o.Statute }},
		{"non_political_affiliation", p.Legal.NonPoliticalAffiliationURL, func(o *org.Organization) *string { return &o.NonPoliticalAffiliation }},
		{"last_balance_sheet", p.Legal.BalanceSheetURL, func(o *org.Organization) *string { return &o.LastBalanceSheet }},
	}

	type outcome struct {
		field    fileField
		filename string
		data     []byte
		err      error
		skip     bool
	}
	outcomes := make([]outcome, len(fields))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(downloadConcurrency)
	for i, f := range fields {
		out := &outcomes[i]
		out.field = f
		if f.url == "" {
			out.skip = true
			continue
		}
		filename := filenameFromURL(f.url)
		if filename == o.CachedFilename(f.name) {
			out.skip = true
			continue
		}
		out.filename = filename
		group.Go(func() error {
			data, err := r.source.Download(groupCtx, f.url)
			out.data, out.err = data, err
			return nil
		})
	}
	// Workers never return errors; outcomes carry per-file failures.
	_ = group.Wait()

	for i := range outcomes {
		out := &outcomes[i]
		field := out.field
		slot := field.get(o)

		if field.url == "" {
			if *slot != "" {
				if err := r.files.Delete(ctx, *slot); err != nil {
					res.Errors = append(res.Errors, fmt.Sprintf("delete %s: %v", field.name, err))
					continue
				}
				*slot = ""
				o.CacheFilename(field.name, "")
				res.Errors = append(res.Errors, fmt.Sprintf("%s removed upstream", field.name))
			} else {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s missing upstream", field.name))
			}
			continue
		}
		if out.skip {
			continue
		}
		if out.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("fetch %s: %v", field.name, out.err))
			continue
		}
		stored := o.ID.String() + "/" + field.name + "/" + out.filename
		if err := r.files.Save(ctx, stored, out.data); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("store %s: %v", field.name, err))
			continue
		}
		*slot = stored
		o.CacheFilename(field.name, out.filename)
	}
}

// settleStatus applies the post-run status rule: a clean run over a draft
// or pending record means the registry vetted the NGO; a run with errors
// parks a draft at pending for manual review. Accepted records keep their
// status either way.
func (r *Reconciler) settleStatus(o *org.Organization, res Result) {
	switch o.Status {
	case org.StatusDraft, org.StatusPending:
		if res.Clean() {
			o.Status = org.StatusHubAccepted
			if o.HasVotingDomain() {
				o.Status = org.StatusAccepted
			}
			if o.Status == org.StatusAccepted && o.AcceptedAt.IsZero() {
				o.AcceptedAt = o.SyncedAt
			}
		} else {
			o.Status = org.StatusPending
		}
	}
}

func (r *Reconciler) recordOutcome(ctx context.Context, o org.Organization, res Result) {
	outcome := "clean"
	if !res.Clean() {
		outcome = "partial"
		r.mailFailures(ctx, o, res)
	}
	if r.metrics != nil {
		r.metrics.IncrementSynced(outcome)
	}
	if r.publisher != nil {
		err := r.publisher.Emit(ctx, audit.Event{
			Category:  audit.ActionOrgSynced.Category(),
			Action:    audit.ActionOrgSynced,
			Timestamp: requestcontext.Now(ctx),
			ActorID:   requestcontext.ActorID(ctx),
			OrgID:     o.ID,
			Subject:   o.Name,
			Reason:    strings.Join(res.Errors, "; "),
			RequestID: requestcontext.RequestID(ctx),
		})
		if err != nil && r.logger != nil {
			r.logger.Warn("sync audit emit failed", "org_id", o.ID.String(), "error", err)
		}
	}
}

// mailFailures sends the error list to staff and support. Best-effort: a
// failed send never rolls back the reconciliation.
func (r *Reconciler) mailFailures(ctx context.Context, o org.Organization, res Result) {
	if r.mailer == nil {
		return
	}
	recipients, err := r.roster.GroupEmails(ctx, accounts.GroupStaff, accounts.GroupSupport)
	if err != nil || len(recipients) == 0 {
		if err != nil && r.logger != nil {
			r.logger.Warn("staff roster lookup failed", "error", err)
		}
		return
	}
	msg := notify.Message{
		Subject:      "Sync failures for " + o.Name,
		Recipients:   recipients,
		TextTemplate: notify.TemplateSyncFailures,
		HTMLTemplate: notify.TemplateSyncFailures,
		Context: map[string]string{
			"organization": o.Name,
			"errors":       strings.Join(res.Errors, "\n"),
			"warnings":     strings.Join(res.Warnings, "\n"),
		},
	}
	if err := r.mailer.Send(ctx, msg); err != nil && r.logger != nil {
		r.logger.Warn("sync failure notification failed", "org_id", o.ID.String(), "error", err)
	}
}

func setIf(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	return path.Base(u.Path)
}
