package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sangha-backend/internal/metrics"
	"sangha-backend/internal/models"
	"sangha-backend/internal/practice"
	"sangha-backend/internal/repository"
)

var (
	ErrUnknownPractitioner = errors.New("unknown practitioner")
	ErrNoSession           = errors.New("practitioner has no session")
	ErrInsufficientFunds   = errors.New("insufficient spirit bank points for virtual sessions")
	ErrMalformedMessage    = errors.New("malformed presence message")
)

// Directory looks practitioners up by id.
type Directory interface {
	GetByID(ctx context.Context, id string) (*models.Practitioner, error)
}

// LedgerWriter persists a ledger entry. Calls happen outside the registry lock
// and their failures do not undo a connection.
type LedgerWriter interface {
	WriteEntry(ctx context.Context, practitionerID string, entry models.SpiritBankLogEntry) error
}

// Mode selects the connect path.
type Mode int

const (
	ModeReal Mode = iota
	ModeVirtual
)

// Admission describes a successful connect. Declined is set when virtual
// sessions were requested but the creator could not pay for them.
type Admission struct {
	Session  models.Session
	Virtual  int
	Declined error
}

// pendingTTL bounds how long a queued debit is held against a balance when it
// never shows up in the practitioner's ledger.
const pendingTTL = 15 * time.Minute

type pendingDebit struct {
	entry  models.SpiritBankLogEntry
	queued time.Time
}

// Registry maps live connection handles to the sessions they represent. One
// lock guards the whole map; every operation is atomic with respect to the others.
// Debits decided under the lock stay pending until the directory reflects them.
type Registry struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]models.Session
	pending     map[string][]pendingDebit

	directory   Directory
	ledger      LedgerWriter
	virtualCost int64
	now         func() time.Time
	ledgerWG    sync.WaitGroup
}

func NewRegistry(directory Directory, ledger LedgerWriter, virtualCost int64, now func() time.Time) *Registry {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Registry{
		connections: make(map[uuid.UUID][]models.Session),
		pending:     make(map[string][]pendingDebit),
		directory:   directory,
		ledger:      ledger,
		virtualCost: virtualCost,
		now:         now,
	}
}

// Connect registers handle with the practitioner's latest session. In ModeVirtual a
// creator sitting in their own active circle also gets one extra copy of the session
// per virtual registration, paid from their spirit bank. Connecting an already
// registered handle replaces its entry.
func (r *Registry) Connect(ctx context.Context, handle uuid.UUID, practitionerID string, mode Mode) (*Admission, error) {
	p, err := r.directory.GetByID(ctx, practitionerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPractitioner, practitionerID)
		}
		return nil, fmt.Errorf("failed to look up practitioner: %w", err)
	}

	latest := p.LatestSession()
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, practitionerID)
	}
	session := latest.Clone()
	admission := &Admission{Session: session}

	var debit *models.SpiritBankLogEntry

	r.mu.Lock()
	now := r.now()
	sessions := []models.Session{session}
	if mode == ModeVirtual {
		if count := virtualCount(p, session, now); count > 0 {
			cost := practice.VirtualRegistrationCost(count, r.virtualCost)
			available := practice.Balance(p.SpiritBankLog) + r.outstandingLocked(p.ID, p.SpiritBankLog, now)
			if available >= cost {
				for i := 0; i < count; i++ {
					sessions = append(sessions, session.Clone())
				}
				admission.Virtual = count
				debit = &models.SpiritBankLogEntry{Created: now, Type: models.SpiritBankAddVirtualToCircle, Points: -cost}
				r.pending[p.ID] = append(r.pending[p.ID], pendingDebit{entry: *debit, queued: now})
			} else {
				admission.Declined = ErrInsufficientFunds
			}
		}
	}
	r.connections[handle] = sessions
	metrics.SetPresence(len(r.connections), r.sizeLocked())
	r.mu.Unlock()

	if debit != nil {
		metrics.RecordVirtualRegistration(admission.Virtual)
		r.writeLedger(practitionerID, *debit)
	}

	logrus.WithFields(logrus.Fields{
		"practitioner_id": practitionerID,
		"handle":          handle,
		"virtual":         admission.Virtual,
	}).Debug("presence: connected")

	return admission, nil
}

// Disconnect removes handle and returns its sessions. Unknown handles report false.
func (r *Registry) Disconnect(handle uuid.UUID) ([]models.Session, bool) {
	r.mu.Lock()
	sessions, ok := r.connections[handle]
	if ok {
		delete(r.connections, handle)
		metrics.SetPresence(len(r.connections), r.sizeLocked())
	}
	r.mu.Unlock()

	return sessions, ok
}

// AllSessions flattens every registered connection's sessions.
func (r *Registry) AllSessions() []models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]models.Session, 0, r.sizeLocked())
	for _, sessions := range r.connections {
		all = append(all, sessions...)
	}
	return all
}

func (r *Registry) Handles() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]uuid.UUID, 0, len(r.connections))
	for handle := range r.connections {
		handles = append(handles, handle)
	}
	return handles
}

// Size counts sessions across all connections, virtual ones included.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sizeLocked()
}

func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Snapshot is a consistent view for one broadcast. Others and Companions leave
// out the excluded handle; All does not.
type Snapshot struct {
	Others      []uuid.UUID
	All         []models.Session
	Companions  []models.Session
	Connections int
}

func (r *Registry) Snapshot(exclude uuid.UUID) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Others:      make([]uuid.UUID, 0, len(r.connections)),
		All:         make([]models.Session, 0, r.sizeLocked()),
		Companions:  make([]models.Session, 0, r.sizeLocked()),
		Connections: len(r.connections),
	}
	for handle, sessions := range r.connections {
		snap.All = append(snap.All, sessions...)
		if handle == exclude {
			continue
		}
		snap.Others = append(snap.Others, handle)
		snap.Companions = append(snap.Companions, sessions...)
	}
	return snap
}

// Pending returns the sum of debits not yet visible in the practitioner's ledger.
func (r *Registry) Pending(practitionerID string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, d := range r.pending[practitionerID] {
		total += d.entry.Points
	}
	return total
}

// outstandingLocked drops pending debits that log already contains or that
// expired, and returns the sum of the rest. Callers hold r.mu.
func (r *Registry) outstandingLocked(practitionerID string, log []models.SpiritBankLogEntry, now time.Time) int64 {
	debits := r.pending[practitionerID]
	kept := debits[:0]
	var total int64
	for _, d := range debits {
		if now.Sub(d.queued) > pendingTTL || containsEntry(log, d.entry) {
			continue
		}
		kept = append(kept, d)
		total += d.entry.Points
	}
	if len(kept) == 0 {
		delete(r.pending, practitionerID)
	} else {
		r.pending[practitionerID] = kept
	}
	return total
}

// dropPending forgets a debit whose write failed, so it no longer holds funds.
func (r *Registry) dropPending(practitionerID string, entry models.SpiritBankLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	debits := r.pending[practitionerID]
	for i, d := range debits {
		if sameEntry(d.entry, entry) {
			r.pending[practitionerID] = append(debits[:i:i], debits[i+1:]...)
			break
		}
	}
	if len(r.pending[practitionerID]) == 0 {
		delete(r.pending, practitionerID)
	}
}

func containsEntry(log []models.SpiritBankLogEntry, entry models.SpiritBankLogEntry) bool {
	for i := len(log) - 1; i >= 0; i-- {
		if sameEntry(log[i], entry) {
			return true
		}
	}
	return false
}

func sameEntry(a, b models.SpiritBankLogEntry) bool {
	return a.Type == b.Type && a.Points == b.Points && a.Created.Equal(b.Created)
}

// Wait blocks until pending ledger writes have returned.
func (r *Registry) Wait() {
	r.ledgerWG.Wait()
}

func (r *Registry) sizeLocked() int {
	n := 0
	for _, sessions := range r.connections {
		n += len(sessions)
	}
	return n
}

func (r *Registry) writeLedger(practitionerID string, entry models.SpiritBankLogEntry) {
	if r.ledger == nil {
		return
	}
	r.ledgerWG.Add(1)
	go func() {
		defer r.ledgerWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.ledger.WriteEntry(ctx, practitionerID, entry); err != nil {
			logrus.WithError(err).WithField("practitioner_id", practitionerID).Error("presence: failed to record virtual session debit")
			r.dropPending(practitionerID, entry)
		}
	}()
}

// virtualCount is the number of proxy sessions p may register for session: the
// circle must be active, created by p, and carry virtual registrations.
func virtualCount(p *models.Practitioner, session models.Session, now time.Time) int {
	circle := p.CreatedCircle(session.CircleID())
	if circle == nil || !circle.Active(now) || circle.VirtualRegistered <= 0 {
		return 0
	}
	return circle.VirtualRegistered
}
