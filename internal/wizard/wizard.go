package wizard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

// Step indices. VehicleInfo is followed by one step per component kind,
// then the summary. Success is terminal; only Reset leaves it.
const (
	StepVehicleInfo = 0
	StepSummary     = models.ComponentCount + 1
	StepSuccess     = models.ComponentCount + 2
)

// Backend is the remote collaborator the wizard submits through.
type Backend interface {
	CreateInspection(ctx context.Context, payload CreatePayload) (*models.InspectionRecord, error)
	UploadComponentImage(ctx context.Context, inspectionID string, kind models.ComponentKind, filename string, data []byte) error
}

// CreatePayload is the submission body for a new inspection.
type CreatePayload struct {
	TruckPlate   string
	GeneralNotes string
	Components   []ComponentDraft
}

// ComponentDraft holds the in-progress capture for one component.
type ComponentDraft struct {
	Kind   models.ComponentKind
	Status models.ComponentStatus
	Notes  string
	Image  *ImageAttachment
}

// ImageAttachment is a to-be-uploaded photo bound to one component.
type ImageAttachment struct {
	Filename string
	Data     []byte
}

// Engine is the linear step state machine that captures one inspection.
// Forward transitions are gated per step; backward transitions are free.
// Safe for use from multiple goroutines.
type Engine struct {
	backend    Backend
	logger     *zap.Logger
	invalidate func()

	mu           sync.Mutex
	step         int
	plate        string
	generalNotes string
	components   [models.ComponentCount]ComponentDraft
	submitting   bool
	lastErr      error
}

// New builds an engine at the initial step with all components unset.
// The invalidate hook runs after a successful submission so the host can
// drop cached pending counts; nil is allowed.
func New(backend Backend, invalidate func(), logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{backend: backend, invalidate: invalidate, logger: logger}
	e.resetLocked()
	return e
}

func (e *Engine) resetLocked() {
	e.step = StepVehicleInfo
	e.plate = ""
	e.generalNotes = ""
	e.lastErr = nil
	for i, kind := range models.ComponentKinds() {
		e.components[i] = ComponentDraft{Kind: kind, Status: models.ComponentUnset}
	}
}

// Step returns the current step index.
func (e *Engine) Step() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// SubmissionError returns the error recorded by the last failed Submit,
// until a field mutation clears it.
func (e *Engine) SubmissionError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// CanAdvance reports whether the current step's gate is satisfied.
func (e *Engine) CanAdvance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canAdvanceLocked()
}

func (e *Engine) canAdvanceLocked() bool {
	switch {
	case e.step == StepVehicleInfo:
		return len(strings.TrimSpace(e.plate)) >= models.MinPlateLength
	case e.step >= 1 && e.step <= models.ComponentCount:
		return e.components[e.step-1].Status != models.ComponentUnset
	case e.step == StepSummary:
		return true
	}
	return false
}

// Advance moves one step forward when the gate holds. A blocked advance
// is a silent no-op. Advancing past the summary is Submit's job, not
// Advance's; the step index never exceeds StepSummary here.
func (e *Engine) Advance() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.step >= StepSummary || !e.canAdvanceLocked() {
		return
	}
	e.step++
}

// Retreat moves one step backward, unconditionally, stopping at the
// first step.
func (e *Engine) Retreat() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.step > StepVehicleInfo && e.step < StepSuccess {
		e.step--
	}
}

// SetPlate updates the truck plate.
func (e *Engine) SetPlate(plate string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plate = plate
	e.lastErr = nil
}

// SetGeneralNotes updates the free-form notes on the whole inspection.
func (e *Engine) SetGeneralNotes(notes string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generalNotes = notes
	e.lastErr = nil
}

// SetComponentStatus records the tri-state result for component i (0-based).
func (e *Engine) SetComponentStatus(i int, status models.ComponentStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= models.ComponentCount {
		return
	}
	e.components[i].Status = status
	e.lastErr = nil
}

// SetComponentNotes records the notes for component i (0-based).
func (e *Engine) SetComponentNotes(i int, notes string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= models.ComponentCount {
		return
	}
	e.components[i].Notes = notes
	e.lastErr = nil
}

// AttachImage binds a photo to component i, replacing any previous one.
func (e *Engine) AttachImage(i int, filename string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= models.ComponentCount {
		return
	}
	e.components[i].Image = &ImageAttachment{Filename: filename, Data: data}
	e.lastErr = nil
}

// RemoveImage detaches the photo from component i.
func (e *Engine) RemoveImage(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= models.ComponentCount {
		return
	}
	e.components[i].Image = nil
	e.lastErr = nil
}

// Component returns a copy of the draft for component i.
func (e *Engine) Component(i int) ComponentDraft {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= models.ComponentCount {
		return ComponentDraft{}
	}
	return e.components[i]
}

// Progress returns the display percentage for the current step, clamped
// to [0, 100]. A degenerate single-step wizard reads as complete.
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	denominator := StepSummary - StepVehicleInfo
	if denominator == 0 {
		return 100
	}
	pct := float64(e.step) / float64(denominator) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Submit validates the full capture and performs the two-phase side
// effect: one atomic record creation, then concurrent best-effort image
// uploads. Upload failures are swallowed; the record already exists and
// a supervisor may simply find a problem report without its photo.
func (e *Engine) Submit(ctx context.Context) (*models.InspectionRecord, error) {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission already in flight")
	}

	if err := e.validateLocked(); err != nil {
		e.lastErr = err
		e.mu.Unlock()
		return nil, err
	}

	payload := CreatePayload{
		TruckPlate:   models.NormalizePlate(e.plate),
		GeneralNotes: e.generalNotes,
		Components:   make([]ComponentDraft, models.ComponentCount),
	}
	copy(payload.Components, e.components[:])
	e.submitting = true
	e.mu.Unlock()

	record, err := e.backend.CreateInspection(ctx, payload)
	if err != nil {
		e.mu.Lock()
		e.submitting = false
		e.lastErr = err
		e.mu.Unlock()
		return nil, err
	}

	e.uploadImages(ctx, record.ID, payload.Components)

	e.mu.Lock()
	e.submitting = false
	e.step = StepSuccess
	e.mu.Unlock()

	if e.invalidate != nil {
		e.invalidate()
	}
	return record, nil
}

func (e *Engine) validateLocked() error {
	if strings.TrimSpace(e.plate) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "truck plate is required")
	}
	for i, component := range e.components {
		if component.Status == models.ComponentUnset {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("component %s (step %d) has no result", component.Kind, i+1))
		}
	}
	return nil
}

func (e *Engine) uploadImages(ctx context.Context, recordID string, components []ComponentDraft) {
	var wg sync.WaitGroup
	for _, component := range components {
		if component.Image == nil {
			continue
		}
		wg.Add(1)
		go func(c ComponentDraft) {
			defer wg.Done()
			if err := e.backend.UploadComponentImage(ctx, recordID, c.Kind, c.Image.Filename, c.Image.Data); err != nil {
				e.logger.Warn("component image upload failed",
					zap.String("inspection_id", recordID),
					zap.String("component", string(c.Kind)),
					zap.Error(err))
			}
		}(component)
	}
	wg.Wait()
}

// Reset discards all input and returns to the initial step. Refused while
// a submission is in flight so a half-submitted record is never orphaned.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return appErrors.Clone(appErrors.ErrConflict, "cannot reset while a submission is in flight")
	}
	e.resetLocked()
	return nil
}
