package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
	"github.com/xela07ax/epi-orchestrator/internal/repository"
	"github.com/xela07ax/epi-orchestrator/internal/rules"
)

// DecisionNotifier транслирует принятые решения подписчикам (табло у
// турникета, дашборды). Доставка best-effort: решение уже зафиксировано
// в хранилище, и сбой трансляции не должен ронять запрос.
type DecisionNotifier interface {
	NotifyDecision(ctx context.Context, d *domain.Decision)
}

// Orchestrator — ядро шлюза: два чистых гейта (лицо, СИЗ) + персистенс
// событий и решения в одной транзакционной области на вызов.
type Orchestrator struct {
	store    repository.Store
	notifier DecisionNotifier
	metrics  *Metrics
	logger   *zap.Logger

	// Подменяются в тестах для детерминизма.
	now   func() time.Time
	newID func() string
}

func NewOrchestrator(store repository.Store, notifier DecisionNotifier, metrics *Metrics, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.Named("orchestrator"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// SubmitFaceEvent принимает одиночное face-событие (прямой путь записи).
// Форма записи идентична той, что создает Process: материализация общая.
func (o *Orchestrator) SubmitFaceEvent(ctx context.Context, in domain.FaceEventInput) (*domain.FaceEvent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ev := o.materializeFace(in, nil, nil)
	if err := o.store.InsertFaceEvent(ctx, &ev); err != nil {
		o.metrics.StoreErrorsTotal.WithLabelValues("insert_face").Inc()
		return nil, fmt.Errorf("orchestrator: failed to store face event: %w", err)
	}

	o.metrics.EventsTotal.WithLabelValues("face").Inc()
	return &ev, nil
}

// SubmitEpiEvent принимает одиночное EPI-событие (прямой путь записи).
func (o *Orchestrator) SubmitEpiEvent(ctx context.Context, in domain.EpiEventInput) (*domain.EpiEvent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ev := o.materializeEpi(in, nil, nil)
	if err := o.store.InsertEpiEvent(ctx, &ev); err != nil {
		o.metrics.StoreErrorsTotal.WithLabelValues("insert_epi").Inc()
		return nil, fmt.Errorf("orchestrator: failed to store epi event: %w", err)
	}

	o.metrics.EventsTotal.WithLabelValues("epi").Inc()
	return &ev, nil
}

// Process — полная оркестрация: оба гейта, персистенс событий, решение.
// Атомарно с точки зрения читателей: при любом сбое персистенса наружу
// не видно ни одной записи этого вызова.
func (o *Orchestrator) Process(ctx context.Context, req domain.OrchestrationRequest) (*domain.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := o.now()
	defer func() {
		o.metrics.OrchestrationDuration.Observe(time.Since(start).Seconds())
	}()

	// 1. Гейты — чистые функции, до какого-либо I/O.
	faceOK, faceMsg := rules.EvaluateFaceQuality(req.FaceEvent)

	required := req.RequiredEpis
	if required == nil {
		required = []domain.EpiType{domain.EpiHelmet}
	}
	epiOK, epiMsg, _ := rules.EvaluateEpiCompliance(req.EpiEvents, required)

	// 2. Одна транзакционная область на вызов. Rollback в defer
	// гарантирует освобождение на каждом пути выхода.
	scope, err := o.store.Begin(ctx)
	if err != nil {
		o.metrics.StoreErrorsTotal.WithLabelValues("begin").Inc()
		return nil, fmt.Errorf("orchestrator: failed to open tx scope: %w", err)
	}
	defer scope.Rollback(context.WithoutCancel(ctx))

	face := o.materializeFace(req.FaceEvent, req.PersonID, req.Location)
	if err := scope.InsertFaceEvent(ctx, &face); err != nil {
		o.metrics.StoreErrorsTotal.WithLabelValues("insert_face").Inc()
		return nil, fmt.Errorf("orchestrator: failed to store face event: %w", err)
	}

	epiEventIDs := make([]string, 0, len(req.EpiEvents))
	for i := range req.EpiEvents {
		ev := o.materializeEpi(req.EpiEvents[i], req.PersonID, req.Location)
		if err := scope.InsertEpiEvent(ctx, &ev); err != nil {
			o.metrics.StoreErrorsTotal.WithLabelValues("insert_epi").Inc()
			return nil, fmt.Errorf("orchestrator: failed to store epi event: %w", err)
		}
		epiEventIDs = append(epiEventIDs, ev.ID)
	}

	// 3. Решение.
	decision := o.decide(req, faceOK, faceMsg, epiOK, epiMsg)
	decision.FaceEventID = face.ID
	decision.EpiEventIDs = epiEventIDs
	decision.Metadata = buildMetadata(req, required)

	if err := scope.InsertDecision(ctx, &decision); err != nil {
		o.metrics.StoreErrorsTotal.WithLabelValues("insert_decision").Inc()
		return nil, fmt.Errorf("orchestrator: failed to store decision: %w", err)
	}

	if err := scope.Commit(ctx); err != nil {
		o.metrics.StoreErrorsTotal.WithLabelValues("commit").Inc()
		return nil, fmt.Errorf("orchestrator: failed to commit: %w", err)
	}

	o.metrics.OrchestrationsTotal.WithLabelValues(string(decision.Decision)).Inc()
	o.logger.Info("decision made",
		zap.String("decision_id", decision.ID),
		zap.String("decision", string(decision.Decision)),
		zap.Float64("confidence", decision.ConfidenceScore))

	// 4. Best-effort трансляция уже зафиксированного решения.
	if o.notifier != nil {
		o.notifier.NotifyDecision(ctx, &decision)
	}

	return &decision, nil
}

// decide собирает статус, причину и итоговую уверенность решения.
func (o *Orchestrator) decide(req domain.OrchestrationRequest, faceOK bool, faceMsg string, epiOK bool, epiMsg string) domain.Decision {
	d := domain.Decision{
		ID:        o.newID(),
		Timestamp: o.now().UTC(),
		PersonID:  req.PersonID,
		Location:  req.Location,
	}

	if faceOK && epiOK {
		d.Decision = domain.DecisionApproved
		d.Reason = fmt.Sprintf("access approved. %s. %s", faceMsg, epiMsg)

		// Итоговая уверенность — минимум по лицу и всем EPI-событиям.
		// Без EPI-событий пол равен 1.0 и не влияет на минимум.
		epiFloor := 1.0
		for _, e := range req.EpiEvents {
			if e.Confidence < epiFloor {
				epiFloor = e.Confidence
			}
		}
		d.ConfidenceScore = min(req.FaceEvent.Confidence, epiFloor)
		return d
	}

	d.Decision = domain.DecisionRejected
	d.ConfidenceScore = 0.0
	reason := "access denied."
	if !faceOK {
		reason += " " + faceMsg
	}
	if !epiOK {
		reason += " " + epiMsg
	}
	d.Reason = reason
	return d
}

// buildMetadata фиксирует входы, по которым принято решение.
// detected_epis намеренно без дедупликации: одна позиция на каждое
// detected-событие, в порядке подачи.
func buildMetadata(req domain.OrchestrationRequest, required []domain.EpiType) map[string]any {
	requiredNames := make([]string, len(required))
	for i, t := range required {
		requiredNames[i] = string(t)
	}

	detected := make([]string, 0, len(req.EpiEvents))
	for _, e := range req.EpiEvents {
		if e.Detected {
			detected = append(detected, string(e.EpiType))
		}
	}

	return map[string]any{
		"face_quality":    req.FaceEvent.QualityScore,
		"face_confidence": req.FaceEvent.Confidence,
		"required_epis":   requiredNames,
		"detected_epis":   detected,
	}
}

// materializeFace переводит вход в запись: присваивает отсутствующие
// id/timestamp и применяет fallback person/location уровня запроса.
// Значение в самом событии всегда приоритетнее.
func (o *Orchestrator) materializeFace(in domain.FaceEventInput, personID, location *string) domain.FaceEvent {
	ev := domain.FaceEvent{
		ID:           in.ID,
		Timestamp:    in.Timestamp,
		Detected:     in.Detected,
		Confidence:   in.Confidence,
		QualityScore: in.QualityScore,
		PersonID:     in.PersonID,
		Location:     in.Location,
		Metadata:     in.Metadata,
	}
	if ev.ID == "" {
		ev.ID = o.newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now().UTC()
	}
	if ev.PersonID == nil {
		ev.PersonID = personID
	}
	if ev.Location == nil {
		ev.Location = location
	}
	return ev
}

func (o *Orchestrator) materializeEpi(in domain.EpiEventInput, personID, location *string) domain.EpiEvent {
	ev := domain.EpiEvent{
		ID:           in.ID,
		Timestamp:    in.Timestamp,
		EpiType:      in.EpiType,
		Detected:     in.Detected,
		Confidence:   in.Confidence,
		ProperlyWorn: in.ProperlyWorn,
		PersonID:     in.PersonID,
		Location:     in.Location,
		Metadata:     in.Metadata,
	}
	if ev.ID == "" {
		ev.ID = o.newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now().UTC()
	}
	if ev.PersonID == nil {
		ev.PersonID = personID
	}
	if ev.Location == nil {
		ev.Location = location
	}
	return ev
}
