package model

const (
	LabelHost  = "host"
	LabelIndex = "index"
)

type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Labels is an ordered label set. Order is preserved on exposition.
type Labels []Label

// HostLabels returns the base label set every device sample carries.
func HostLabels(host string) Labels {
	return Labels{{Name: LabelHost, Value: host}}
}

// With returns a copy of l with name set to value, replacing an existing entry in place.
func (l Labels) With(name, value string) Labels {
	out := make(Labels, 0, len(l)+1)
	replaced := false
	for _, lb := range l {
		if lb.Name == name {
			out = append(out, Label{Name: name, Value: value})
			replaced = true
			continue
		}
		out = append(out, lb)
	}
	if !replaced {
		out = append(out, Label{Name: name, Value: value})
	}
	return out
}

func (l Labels) Get(name string) (string, bool) {
	for _, lb := range l {
		if lb.Name == name {
			return lb.Value, true
		}
	}
	return "", false
}

func (l Labels) Names() []string {
	out := make([]string, len(l))
	for i, lb := range l {
		out[i] = lb.Name
	}
	return out
}

func (l Labels) Values() []string {
	out := make([]string, len(l))
	for i, lb := range l {
		out[i] = lb.Value
	}
	return out
}

// Sample is one observed value. Name is the bare key without any device identity.
type Sample struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Labels Labels  `json:"labels"`
}
