package device

import (
	"fmt"

	"shelly-exporter/internal/flatten"
	"shelly-exporter/internal/jsonval"
	"shelly-exporter/internal/model"
)

// FlattenFunc turns one fetched document into samples. A non-nil error
// discards the whole resource; memberErrs only drop individual samples.
type FlattenFunc func(doc jsonval.Value, p flatten.Policy) (samples []model.Sample, memberErrs []error, err error)

// Resource is one fixed sub-resource of a device.
type Resource struct {
	Name    string
	Path    string
	Family  string
	Flatten FlattenFunc
}

// Fetched reports whether the resource issues a request at all.
func (r Resource) Fetched() bool {
	return r.Path != "" && r.Flatten != nil
}

// Resources lists the sub-resources polled per device, in fetch order.
func Resources() []Resource {
	return []Resource{
		{Name: "meter", Path: "meter/0", Family: model.FamilyMeter, Flatten: flattenFlat},
		{Name: "relay", Path: "relay/0", Family: model.FamilyRelay, Flatten: flattenFlat},
		// settings is reserved; nothing is fetched for it yet.
		{Name: "settings", Family: model.FamilySettings},
		{Name: "status", Path: "status", Family: model.FamilyStatus, Flatten: flattenStatus},
	}
}

func flattenFlat(doc jsonval.Value, p flatten.Policy) ([]model.Sample, []error, error) {
	if doc.Kind() != jsonval.KindObject {
		return nil, nil, fmt.Errorf("%w: got %s", flatten.ErrNotObject, doc.Kind())
	}
	samples, errs := flatten.Collect(flatten.Object(doc, p))
	return samples, errs, nil
}

var (
	statusRequired = []string{"temperature", "overtemperature", "ram_free", "ram_total"}
	statusOptional = []struct {
		name string
		path []string
	}{
		{"tC", []string{"tmp", "tC"}},
		{"tF", []string{"tmp", "tF"}},
	}
	statusRepeated = []struct {
		field  string
		prefix string
	}{
		{"relays", "relays"},
		{"meters", "meter"},
	}
)

func flattenStatus(doc jsonval.Value, p flatten.Policy) ([]model.Sample, []error, error) {
	obj, ok := doc.(jsonval.Object)
	if !ok {
		return nil, nil, fmt.Errorf("%w: got %s", flatten.ErrNotObject, doc.Kind())
	}

	var (
		samples    []model.Sample
		memberErrs []error
	)
	for _, rep := range statusRepeated {
		v, ok := obj.Get(rep.field)
		if !ok {
			continue
		}
		arr, ok := v.(jsonval.Array)
		if !ok {
			return nil, nil, fmt.Errorf("status field %q: want array, got %s", rep.field, v.Kind())
		}
		s, errs := flatten.Collect(flatten.Indexed(rep.prefix, arr, p))
		samples = append(samples, s...)
		memberErrs = append(memberErrs, errs...)
	}

	for _, name := range statusRequired {
		s, err := flatten.Required(doc, name, p, name)
		if err != nil {
			return nil, nil, fmt.Errorf("status: %w", err)
		}
		samples = append(samples, s)
	}

	for _, opt := range statusOptional {
		s, present, err := flatten.Field(doc, opt.name, p, opt.path...)
		if err != nil {
			memberErrs = append(memberErrs, err)
			continue
		}
		if !present {
			continue
		}
		samples = append(samples, s)
	}
	return samples, memberErrs, nil
}
