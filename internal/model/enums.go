package model

// Category 内容安全类别
type Category string

// 远程分类器类别（有布尔标记与 [0,1] 分数）
const (
	CategorySexual          Category = "sexual"
	CategoryHate            Category = "hate"
	CategoryViolence        Category = "violence"
	CategorySelfHarm        Category = "self_harm"
	CategorySexualMinors    Category = "sexual_minors"
	CategoryHateThreatening Category = "hate_threatening"
	CategoryViolenceGraphic Category = "violence_graphic"
)

// 本地规则类别（只有布尔标记，没有分数）
const (
	CategoryProfanity      Category = "profanity"
	CategoryDiscrimination Category = "discrimination"
	CategoryBullying       Category = "bullying"
	CategorySpam           Category = "spam"
)

// RemoteCategories 远程分类器覆盖的类别
var RemoteCategories = []Category{
	CategorySexual,
	CategoryHate,
	CategoryViolence,
	CategorySelfHarm,
	CategorySexualMinors,
	CategoryHateThreatening,
	CategoryViolenceGraphic,
}

// LocalCategories 本地规则分类器覆盖的类别
var LocalCategories = []Category{
	CategoryProfanity,
	CategoryDiscrimination,
	CategoryBullying,
	CategorySpam,
}

// IsLocalCategory 检查是否为本地规则类别
func IsLocalCategory(c Category) bool {
	for _, lc := range LocalCategories {
		if lc == c {
			return true
		}
	}
	return false
}
