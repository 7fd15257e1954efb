package pipeline

// DefaultSubjects maps classifier labels to subject names by index.
var DefaultSubjects = []string{
	"Biology",
	"Chemistry",
	"Computer Science",
	"Economics",
	"English",
	"Geography",
	"History",
	"Mathematics",
	"Physics",
}

// subjectFor returns the subject of label, or false when the table has no
// such label.
func subjectFor(table []string, label int) (string, bool) {
	if label < 0 || label >= len(table) {
		return "", false
	}
	return table[label], true
}
