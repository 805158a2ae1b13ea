package schedule

import "strings"

// CostBucket is the coarse summary classification of a cost line item. It is
// computed once when the line item is built.
type CostBucket string

const (
	BucketAcquisition CostBucket = "acquisition"
	BucketPlanning    CostBucket = "planning"
	BucketDevelopment CostBucket = "development"
	BucketFinancing   CostBucket = "financing"
	BucketContingency CostBucket = "contingency"
	BucketOther       CostBucket = "other"
)

// Buckets lists the summary buckets in display order.
var Buckets = []CostBucket{
	BucketAcquisition,
	BucketPlanning,
	BucketDevelopment,
	BucketFinancing,
	BucketContingency,
	BucketOther,
}

// bucketRules are checked in order; the first rule with a matching
// substring wins.
var bucketRules = []struct {
	bucket   CostBucket
	keywords []string
}{
	{BucketContingency, []string{"contingen"}},
	{BucketFinancing, []string{"financ", "interest", "loan", "debt"}},
	{BucketAcquisition, []string{"acqui", "land purchase", "land cost", "closing"}},
	{BucketPlanning, []string{"plan", "entitle", "design", "engineer", "permit", "soft"}},
	{BucketDevelopment, []string{"develop", "construct", "improve", "infrastructure", "site", "hard", "grading", "utilit"}},
}

// Classify maps free-text category names to a summary bucket by
// case-insensitive substring match. Names are tried in order: a later name,
// such as a subcategory, is consulted only when the earlier ones match no
// rule. Unrecognized text maps to BucketOther.
func Classify(names ...string) CostBucket {
	for _, name := range names {
		if bucket := classifyName(name); bucket != BucketOther {
			return bucket
		}
	}
	return BucketOther
}

func classifyName(name string) CostBucket {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return BucketOther
	}
	for _, rule := range bucketRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.bucket
			}
		}
	}
	return BucketOther
}

// Lifecycle stages in display order.
var Stages = []string{
	"acquisition",
	"planning",
	"development",
	"operations",
	"financing",
	"disposition",
	"contingency",
	"other",
}

// NormalizeStage lowercases a stored stage string and maps unknown or empty
// stages to "other".
func NormalizeStage(stage string) string {
	lower := strings.ToLower(strings.TrimSpace(stage))
	for _, s := range Stages {
		if lower == s {
			return s
		}
	}
	return "other"
}

// StageRank returns the display position of a normalized stage.
func StageRank(stage string) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return len(Stages)
}
