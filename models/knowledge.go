package models

// KnowledgeRecord is a single troubleshooting entry stored in the vector
// index. Extra fields are stored as metadata alongside problem and solution.
type KnowledgeRecord struct {
	ID       string         `json:"id,omitempty" yaml:"id,omitempty"`
	Problem  string         `json:"problem" yaml:"problem"`
	Solution string         `json:"solution" yaml:"solution"`
	Fields   map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Text is the embedded representation of the record.
func (kr KnowledgeRecord) Text() string {
	return kr.Problem + "\n" + kr.Solution
}

// Metadata returns the fields stored with the vector.
func (kr KnowledgeRecord) Metadata() map[string]any {
	m := make(map[string]any, len(kr.Fields)+2)
	for k, v := range kr.Fields {
		m[k] = v
	}
	m["problem"] = kr.Problem
	m["solution"] = kr.Solution
	return m
}
