package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sangha-backend/internal/models"
	"sangha-backend/internal/practice"
	"sangha-backend/internal/repository"
)

// PractitionerStore is the practitioner directory. Both repository.PractitionerRepo
// and repository.MemoryPractitionerRepo satisfy it.
type PractitionerStore interface {
	Insert(ctx context.Context, p *models.Practitioner) error
	GetByID(ctx context.Context, id string) (*models.Practitioner, error)
	GetByEmail(ctx context.Context, email string) (*models.Practitioner, error)
	GetAll(ctx context.Context) ([]models.Practitioner, error)
	UpdateInvolved(ctx context.Context, id, fullName, email, description string) error
	AppendSession(ctx context.Context, id string, s models.Session) error
	AppendCircle(ctx context.Context, id string, c models.Circle) error
	AddRegisteredCircle(ctx context.Context, id, circleID string) error
	CloseLatestSession(ctx context.Context, id string, end time.Time) error
	CloseCircle(ctx context.Context, id, circleID string, end time.Time) error
	AddCircleFeedback(ctx context.Context, id, circleID string, points int64) error
	AppendSpiritBankEntry(ctx context.Context, id string, entry models.SpiritBankLogEntry) (int64, error)
}

// Economics holds the configurable numbers of the spirit bank.
type Economics struct {
	ContributionPercent int64
	CreationMinimum     int64
	VirtualSessionCost  int64
}

type PractitionerService struct {
	store     PractitionerStore
	economics Economics
	now       func() time.Time
}

// NewPractitionerService wires the use cases to a directory. A nil clock means time.Now in UTC.
func NewPractitionerService(store PractitionerStore, economics Economics, now func() time.Time) *PractitionerService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PractitionerService{store: store, economics: economics, now: now}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// CreatePractitioner registers a device. An existing id is returned as is with created=false.
func (s *PractitionerService) CreatePractitioner(ctx context.Context, req models.CreatePractitionerRequest) (*models.PractitionerReport, bool, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}

	existing, err := s.store.GetByID(ctx, id)
	if err == nil {
		return s.report(existing), false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	p := models.NewPractitioner(id, s.now())
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, false, fmt.Errorf("failed to create practitioner: %w", err)
	}

	logrus.WithField("practitioner_id", id).Info("practitioner created")
	return s.report(p), true, nil
}

func (s *PractitionerService) GetReport(ctx context.Context, id string) (*models.PractitionerReport, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.report(p), nil
}

func (s *PractitionerService) UpdateInvolved(ctx context.Context, id string, req models.InvolvedRequest) (*models.PractitionerReport, error) {
	fieldErrors := make(map[string]string)

	if strings.TrimSpace(req.FullName) == "" {
		fieldErrors["full_name"] = "Full name is required"
	}
	if !emailRegex.MatchString(req.Email) {
		fieldErrors["email"] = "Invalid email format"
	}
	if strings.TrimSpace(req.Description) == "" {
		fieldErrors["description"] = "Description is required"
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	if err := s.store.UpdateInvolved(ctx, id, strings.TrimSpace(req.FullName), req.Email, strings.TrimSpace(req.Description)); err != nil {
		return nil, notFound(err, "Practitioner not found")
	}
	return s.GetReport(ctx, id)
}

func (s *PractitionerService) StartSession(ctx context.Context, id string, req models.StartSessionRequest) (*models.Session, error) {
	if err := validateSessionRequest(req); err != nil {
		return nil, err
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	session := newSession(p, req, s.now())
	if err := s.store.AppendSession(ctx, id, session); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return &session, nil
}

// JoinCircle starts a session inside an active circle. Practitioners other than
// the creator pay the circle's minimum contribution.
func (s *PractitionerService) JoinCircle(ctx context.Context, id, circleID string, req models.StartSessionRequest) (*models.Session, error) {
	if err := validateSessionRequest(req); err != nil {
		return nil, err
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	circle, _, err := s.findCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if circle == nil || !circle.Active(now) {
		return nil, &ValidationError{Fields: map[string]string{"circle": "Circle is not active or does not exist"}}
	}

	balance := practice.Balance(p.SpiritBankLog)
	if balance < circle.MinimumSpiritContribution {
		return nil, &InsufficientFundsError{Required: circle.MinimumSpiritContribution, Balance: balance}
	}

	fieldErrors := make(map[string]string)
	if len(circle.Disciplines) > 0 && !circle.HasDiscipline(strings.TrimSpace(req.Discipline)) {
		fieldErrors["discipline"] = "Discipline is not practiced in this circle"
	}
	if len(circle.Intentions) > 0 && !circle.HasIntention(strings.TrimSpace(req.Intention)) {
		fieldErrors["intention"] = "Intention is not held in this circle"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	session := newSession(p, req, now)
	session.Circle = circle
	if err := s.store.AppendSession(ctx, id, session); err != nil {
		return nil, fmt.Errorf("failed to join circle: %w", err)
	}

	if !p.CreatorOf(circle.ID) && circle.MinimumSpiritContribution > 0 {
		entry := models.SpiritBankLogEntry{Created: now, Type: models.SpiritBankJoinedCircle, Points: -circle.MinimumSpiritContribution}
		if _, err := s.store.AppendSpiritBankEntry(ctx, id, entry); err != nil {
			return nil, fmt.Errorf("failed to charge circle contribution: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{"practitioner_id": id, "circle_id": circle.ID}).Info("joined circle")
	return &session, nil
}

func (s *PractitionerService) RegisterCircle(ctx context.Context, id, circleID string) (*models.Circle, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	circle, _, err := s.findCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if circle == nil {
		return nil, &NotFoundError{Message: "Circle not found"}
	}

	if err := s.store.AddRegisteredCircle(ctx, id, circle.ID); err != nil {
		return nil, notFound(err, "Practitioner not found")
	}
	return circle, nil
}

// EndSession closes the latest session and settles the spirit bank. A creator
// ending a session in their own circle also closes the circle and collects the bonus.
func (s *PractitionerService) EndSession(ctx context.Context, id string, req models.EndSessionRequest) (*practice.EndSession, error) {
	if req.Points < 0 {
		return nil, &ValidationError{Fields: map[string]string{"points": "Points must not be negative"}}
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	latest := p.LatestSession()
	if latest == nil {
		return nil, &NotFoundError{Message: "No session to end"}
	}
	if latest.EndTime != nil {
		return nil, &ConflictError{Message: "Session already ended"}
	}

	population, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load practitioners: %w", err)
	}

	now := s.now()
	result := practice.CalculateEndSession(p, population, req.Points, s.economics.ContributionPercent, now)

	if err := s.store.CloseLatestSession(ctx, id, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ConflictError{Message: "Session already ended"}
		}
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	ended := models.SpiritBankLogEntry{Created: now, Type: models.SpiritBankEndedSession, Points: req.Points}
	if _, err := s.store.AppendSpiritBankEntry(ctx, id, ended); err != nil {
		return nil, fmt.Errorf("failed to record session points: %w", err)
	}

	if result.Creator {
		if err := s.store.CloseCircle(ctx, id, result.Circle.ID, now); err != nil {
			return nil, fmt.Errorf("failed to close circle: %w", err)
		}
		if result.CirclePoints > 0 {
			bonus := models.SpiritBankLogEntry{Created: now, Type: models.SpiritBankEndedCreatedCircle, Points: result.CirclePoints}
			if _, err := s.store.AppendSpiritBankEntry(ctx, id, bonus); err != nil {
				return nil, fmt.Errorf("failed to record circle bonus: %w", err)
			}
		}
	}

	if req.Feedback != nil && result.Circle != nil {
		s.recordFeedback(ctx, result.Circle.ID, *req.Feedback)
	}

	logrus.WithFields(logrus.Fields{
		"practitioner_id": id,
		"points":          req.Points,
		"creator":         result.Creator,
		"circle_points":   result.CirclePoints,
	}).Info("session ended")

	return &result, nil
}

func (s *PractitionerService) recordFeedback(ctx context.Context, circleID string, points int64) {
	_, creatorID, err := s.findCircle(ctx, circleID)
	if err != nil || creatorID == "" {
		return
	}
	if err := s.store.AddCircleFeedback(ctx, creatorID, circleID, points); err != nil {
		logrus.WithError(err).WithField("circle_id", circleID).Warn("failed to record circle feedback")
	}
}

// CreateCircle schedules a circle owned by the practitioner.
func (s *PractitionerService) CreateCircle(ctx context.Context, id string, req models.CreateCircleRequest) (*models.Circle, error) {
	fieldErrors := make(map[string]string)

	if strings.TrimSpace(req.Name) == "" {
		fieldErrors["name"] = "Name is required"
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() || !req.StartTime.Before(req.EndTime) {
		fieldErrors["end_time"] = "End time must be after start time"
	}
	if req.MinimumSpiritContribution < 0 {
		fieldErrors["minimum_spirit_contribution"] = "Minimum contribution must not be negative"
	}
	if req.VirtualRegistered < 0 {
		fieldErrors["virtual_registered"] = "Virtual registrations must not be negative"
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	balance := practice.Balance(p.SpiritBankLog)
	if !practice.CanCreateCircle(p.SpiritBankLog, s.economics.CreationMinimum) {
		return nil, &InsufficientFundsError{Required: s.economics.CreationMinimum, Balance: balance}
	}
	if cost := practice.VirtualRegistrationCost(req.VirtualRegistered, s.economics.VirtualSessionCost); cost > balance {
		return nil, &InsufficientFundsError{Required: cost, Balance: balance}
	}

	circle := models.Circle{
		ID:                        uuid.New().String(),
		Name:                      strings.TrimSpace(req.Name),
		Description:               req.Description,
		Geolocation:               req.Geolocation,
		StartTime:                 req.StartTime.UTC(),
		EndTime:                   req.EndTime.UTC(),
		Intentions:                nonNilSlice(req.Intentions),
		Disciplines:               nonNilSlice(req.Disciplines),
		MinimumSpiritContribution: req.MinimumSpiritContribution,
		Language:                  req.Language,
		VirtualRegistered:         req.VirtualRegistered,
		Feedback:                  []int64{},
	}

	if err := s.store.AppendCircle(ctx, id, circle); err != nil {
		return nil, fmt.Errorf("failed to create circle: %w", err)
	}

	logrus.WithFields(logrus.Fields{"practitioner_id": id, "circle_id": circle.ID}).Info("circle created")
	return &circle, nil
}

func (s *PractitionerService) Circles(ctx context.Context) ([]models.Circle, error) {
	population, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	circles := make([]models.Circle, 0)
	for i := range population {
		circles = append(circles, population[i].Circles...)
	}
	return circles, nil
}

func (s *PractitionerService) ActiveCircles(ctx context.Context) ([]models.Circle, error) {
	circles, err := s.Circles(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	active := make([]models.Circle, 0, len(circles))
	for _, c := range circles {
		if c.Active(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

// CircleReceipt summarises a circle for its creator.
func (s *PractitionerService) CircleReceipt(ctx context.Context, id, circleID string) (*models.CircleReport, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	circle := p.CreatedCircle(circleID)
	if circle == nil {
		found, _, err := s.findCircle(ctx, circleID)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, &NotFoundError{Message: "Circle not found"}
		}
		return nil, &ForbiddenError{Message: "Only the circle creator can view its receipt"}
	}

	population, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	return &models.CircleReport{
		Name:                  circle.Name,
		Description:           circle.Description,
		NumberOfPractitioners: practice.SessionsInCircle(population, *circle, s.now()),
		GeneratedPoints:       practice.PointsWithinWindow(p.SpiritBankLog, *circle),
	}, nil
}

func (s *PractitionerService) SpiritBankHistory(ctx context.Context, id string) ([]models.SpiritBankLogEntry, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.SpiritBankLog, nil
}

// Donate moves points between two practitioners' ledgers.
func (s *PractitionerService) Donate(ctx context.Context, fromID, toID string, req models.DonateRequest) (int64, error) {
	fieldErrors := make(map[string]string)
	if req.Points <= 0 {
		fieldErrors["points"] = "Points must be positive"
	}
	if fromID == toID {
		fieldErrors["to"] = "Cannot donate to yourself"
	}
	if len(fieldErrors) > 0 {
		return 0, &ValidationError{Fields: fieldErrors}
	}

	from, err := s.load(ctx, fromID)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.GetByID(ctx, toID); err != nil {
		return 0, notFound(err, "Recipient not found")
	}

	balance := practice.Balance(from.SpiritBankLog)
	if !practice.CanAfford(from.SpiritBankLog, req.Points) {
		return 0, &InsufficientFundsError{Required: req.Points, Balance: balance}
	}

	now := s.now()
	remaining, err := s.store.AppendSpiritBankEntry(ctx, fromID, models.SpiritBankLogEntry{Created: now, Type: models.SpiritBankDonate, Points: -req.Points})
	if err != nil {
		return 0, fmt.Errorf("failed to debit donor: %w", err)
	}
	if _, err := s.store.AppendSpiritBankEntry(ctx, toID, models.SpiritBankLogEntry{Created: now, Type: models.SpiritBankDonate, Points: req.Points}); err != nil {
		return 0, fmt.Errorf("failed to credit recipient: %w", err)
	}

	logrus.WithFields(logrus.Fields{"from": fromID, "to": toID, "points": req.Points}).Info("points donated")
	return remaining, nil
}

func (s *PractitionerService) Companions(ctx context.Context, id string) (*models.CompanionReport, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	population, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	report := practice.CompanionReport(population, id, s.now())
	return &report, nil
}

// CompanionSessions reports the practitioners whose sessions overlapped the
// latest session of id, up to now while it is still open.
func (s *PractitionerService) CompanionSessions(ctx context.Context, id string) (*models.CompanionReport, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	latest := p.LatestSession()
	if latest == nil {
		return nil, &NotFoundError{Message: "No session found"}
	}

	population, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start, end := practice.SessionWindow(*latest, now)
	report := practice.CompanionSessionReport(population, id, start, end, now)
	return &report, nil
}

// MatchedCompanions lists recently active companions scored against the latest session of id.
func (s *PractitionerService) MatchedCompanions(ctx context.Context, id string) ([]models.CompanionMatch, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	latest := p.LatestSession()
	if latest == nil {
		return nil, &NotFoundError{Message: "No session found"}
	}

	population, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return practice.MatchCompanions(population, *latest, id, s.now()), nil
}

// FindByEmail returns the report of the earliest practitioner registered with email.
func (s *PractitionerService) FindByEmail(ctx context.Context, email string) (*models.PractitionerReport, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{Fields: map[string]string{"email": "Email is required"}}
	}

	p, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, notFound(err, "Email not found")
	}
	return s.report(p), nil
}

// CompanionWindow is the look-back used by RecentCompanions.
const CompanionWindow = 24 * time.Hour

// RecentCompanions reports all practice that overlapped the last CompanionWindow.
func (s *PractitionerService) RecentCompanions(ctx context.Context) (*models.CompanionReport, error) {
	population, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := practice.CompanionWindowReport(population, now.Add(-CompanionWindow), now, now)
	return &report, nil
}

func (s *PractitionerService) load(ctx context.Context, id string) (*models.Practitioner, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Practitioner not found")
	}
	return p, nil
}

// findCircle returns the circle with circleID and the id of its creator, or nil when no one created it.
func (s *PractitionerService) findCircle(ctx context.Context, circleID string) (*models.Circle, string, error) {
	if circleID == "" {
		return nil, "", nil
	}

	population, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, "", err
	}
	for i := range population {
		if c := population[i].CreatedCircle(circleID); c != nil {
			circle := c.Clone()
			return &circle, population[i].ID, nil
		}
	}
	return nil, "", nil
}

func (s *PractitionerService) report(p *models.Practitioner) *models.PractitionerReport {
	now := s.now()
	var minutes int64
	for _, session := range p.Sessions {
		minutes += practice.DurationMinutes(session, now)
	}

	return &models.PractitionerReport{
		ID:               p.ID,
		Created:          p.Created,
		SpiritBankPoints: practice.Balance(p.SpiritBankLog),
		Involved:         p.Involved(),
		SessionCount:     len(p.Sessions),
		TotalMinutes:     minutes,
		FullName:         p.FullName,
		Email:            p.Email,
	}
}

func newSession(p *models.Practitioner, req models.StartSessionRequest, now time.Time) models.Session {
	return models.Session{
		Index:       len(p.Sessions),
		Geolocation: req.Geolocation,
		Discipline:  strings.TrimSpace(req.Discipline),
		Practice:    strings.TrimSpace(req.Practice),
		Intention:   strings.TrimSpace(req.Intention),
		StartTime:   now,
	}
}

func validateSessionRequest(req models.StartSessionRequest) error {
	fieldErrors := make(map[string]string)
	if strings.TrimSpace(req.Discipline) == "" {
		fieldErrors["discipline"] = "Discipline is required"
	}
	if strings.TrimSpace(req.Intention) == "" {
		fieldErrors["intention"] = "Intention is required"
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

func notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: message}
	}
	return err
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
