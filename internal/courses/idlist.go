package courses

import (
	"encoding/json"
	"sort"
	"strconv"
)

// idList is an enrollment list. The hosted database turns sparse arrays into
// index-keyed objects, so both shapes are accepted on decode.
type idList []string

func (l *idList) UnmarshalJSON(data []byte) error {
	var arr []*string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = compact(arr)
		return nil
	}

	var obj map[string]*string
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	arr = make([]*string, 0, len(keys))
	for _, k := range keys {
		arr = append(arr, obj[k])
	}
	*l = compact(arr)
	return nil
}

func compact(arr []*string) idList {
	out := make(idList, 0, len(arr))
	for _, s := range arr {
		if s != nil && *s != "" {
			out = append(out, *s)
		}
	}
	return out
}
