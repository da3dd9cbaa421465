package models

// RoadmapItem is one weekly unit of a learning plan.
type RoadmapItem struct {
	Week        int      `bson:"week" json:"week"`
	Title       string   `bson:"title" json:"title"`
	Description string   `bson:"description" json:"description"`
	Resources   []string `bson:"resources" json:"resources"`
	Completed   bool     `bson:"completed" json:"completed"`
}

// Roadmap is ordered as the model returned it. Week numbers are advisory and
// may repeat.
type Roadmap []RoadmapItem
