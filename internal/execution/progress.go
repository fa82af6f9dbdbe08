package execution

// ItemStatus is the aggregate state of one discovered item.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
)

// StageStatus is the state of one stage for one item.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// ItemProgress tracks one item through the pipeline.
type ItemProgress struct {
	VideoID      string                 `json:"video_id"`
	Title        string                 `json:"title"`
	ThumbnailURL string                 `json:"thumbnail_url,omitempty"`
	Status       ItemStatus             `json:"status"`
	CurrentStage *string                `json:"current_stage"`
	Stages       map[string]StageStatus `json:"stages"`
	Error        string                 `json:"error,omitempty"`
}

// NewItemProgress returns a pending entry with every stage pending.
func NewItemProgress(id, title, thumbnail string, stages []string) ItemProgress {
	states := make(map[string]StageStatus, len(stages))
	for _, s := range stages {
		states[s] = StagePending
	}
	return ItemProgress{
		VideoID:      id,
		Title:        title,
		ThumbnailURL: thumbnail,
		Status:       ItemPending,
		Stages:       states,
	}
}

// Clone copies the entry including its stage map.
func (p ItemProgress) Clone() ItemProgress {
	out := p
	if p.CurrentStage != nil {
		stage := *p.CurrentStage
		out.CurrentStage = &stage
	}
	out.Stages = make(map[string]StageStatus, len(p.Stages))
	for k, v := range p.Stages {
		out.Stages[k] = v
	}
	return out
}
