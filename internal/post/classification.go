package post

import "slices"

// Classification tags assigned to posts.
const (
	BugIssue        = "bug_issue"
	Frustration     = "frustration"
	Kudos           = "kudos"
	Demo            = "demo"
	Question        = "question"
	ProductFeedback = "product_feedback"
)

// Classifications lists the known tags in display order.
var Classifications = []string{BugIssue, Frustration, Kudos, Demo, Question, ProductFeedback}

// IsClassification reports whether tag is a known classification.
func IsClassification(tag string) bool {
	return slices.Contains(Classifications, tag)
}
