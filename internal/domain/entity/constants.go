package entity

// Priority (RAG) constants for Job
const (
	PriorityRed   = "RED"
	PriorityAmber = "AMBER"
	PriorityGreen = "GREEN"
)

// ValidPriority reports whether p is a recognised RAG value or empty.
func ValidPriority(p string) bool {
	switch p {
	case "", PriorityRed, PriorityAmber, PriorityGreen:
		return true
	default:
		return false
	}
}
