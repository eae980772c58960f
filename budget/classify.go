package budget

import "strings"

// Category is the semantic type of a file that was read.
type Category string

const (
	CategoryCode   Category = "code"
	CategoryConfig Category = "config"
	CategoryDocs   Category = "docs"
	CategoryData   Category = "data"
	CategoryTest   Category = "test"
	CategoryOther  Category = "other"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryCode, CategoryConfig, CategoryDocs, CategoryData, CategoryTest, CategoryOther,
}

// testMarkers are matched against the lower-cased base name before any
// extension check.
var testMarkers = []string{"test_", "_test.", ".test.", "spec_", "_spec."}

// extensionCategories is checked in order; first match wins.
var extensionCategories = []struct {
	category   Category
	extensions []string
}{
	{CategoryCode, []string{".py", ".js", ".ts", ".tsx", ".jsx", ".rb", ".go", ".rs", ".java", ".c", ".cpp", ".h"}},
	{CategoryConfig, []string{".json", ".yaml", ".yml", ".toml", ".ini", ".env", ".xml"}},
	{CategoryDocs, []string{".md", ".rst", ".txt", ".doc", ".docx"}},
	{CategoryData, []string{".csv", ".sql", ".parquet"}},
}

// Classify maps a path to a category. It is total over all strings.
func Classify(path string) Category {
	lower := strings.ToLower(path)
	base := baseName(lower)

	for _, marker := range testMarkers {
		if strings.Contains(base, marker) {
			return CategoryTest
		}
	}

	for _, ec := range extensionCategories {
		for _, ext := range ec.extensions {
			if strings.HasSuffix(lower, ext) {
				return ec.category
			}
		}
	}

	return CategoryOther
}

// baseName handles both separators so Windows-style hook payloads classify
// the same on every platform.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Directory returns the parent component of path, or "" when the path has
// no separator.
func Directory(path string) string {
	i := strings.LastIndexAny(path, `/\`)
	switch {
	case i < 0:
		return ""
	case i == 0:
		return path[:1]
	default:
		return path[:i]
	}
}
