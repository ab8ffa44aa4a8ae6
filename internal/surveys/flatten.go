package surveys

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Flatten turns one nested submission into a flat row. Scalars pass
// through under their own key; nested maps flatten to "field.sub";
// lists explode to 0-based "field.N[.sub]" columns. Empty lists and
// nulls produce no column at all, so two submissions with different
// repeat-group lengths simply have different column sets.
func Flatten(record map[string]any) map[string]string {
	out := map[string]string{}
	for key, value := range record {
		flattenInto(out, key, value)
	}
	return out
}

func flattenInto(out map[string]string, prefix string, value any) {
	switch v := value.(type) {
	case nil:
	case map[string]any:
		for key, sub := range v {
			flattenInto(out, prefix+"."+key, sub)
		}
	case []any:
		if len(v) == 0 {
			return
		}
		for i, elem := range v {
			flattenInto(out, prefix+"."+strconv.Itoa(i), elem)
		}
	default:
		out[prefix] = stringify(v)
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
