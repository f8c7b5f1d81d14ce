package domain

// Stats — сводные счетчики системы на момент вызова. Считаются по
// фактическому состоянию хранилища, без snapshot-изоляции.
type Stats struct {
	TotalFaceEvents   int64 `json:"total_face_events"`
	TotalEpiEvents    int64 `json:"total_epi_events"`
	TotalDecisions    int64 `json:"total_decisions"`
	ApprovedDecisions int64 `json:"approved_decisions"`
	RejectedDecisions int64 `json:"rejected_decisions"`
	PendingDecisions  int64 `json:"pending_decisions"`
}

// History — срез истории: три коллекции независимо, каждая ограничена
// своим limit и отсортирована по времени по убыванию.
type History struct {
	FaceEvents []FaceEvent `json:"face_events"`
	EpiEvents  []EpiEvent  `json:"epi_events"`
	Decisions  []Decision  `json:"decisions"`
}
