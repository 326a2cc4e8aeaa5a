package ncutil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Summary describes the layout of a NetCDF file.
type Summary struct {
	Path       string            `json:"path"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Variables  []Variable        `json:"variables"`
}

type Variable struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Dimensions []string          `json:"dimensions,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Inspect opens path and summarises its variables and global attributes.
// Variables are listed by name.
func Inspect(path string) (Summary, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	s := Summary{Path: path, Attributes: attributes(nc.Attributes())}

	names := nc.ListVariables()
	sort.Strings(names)
	for _, name := range names {
		v, err := nc.GetVariable(name)
		if err != nil {
			return Summary{}, fmt.Errorf("read variable %s: %w", name, err)
		}
		s.Variables = append(s.Variables, Variable{
			Name:       name,
			Type:       strings.TrimPrefix(fmt.Sprintf("%T", v.Values), "[]"),
			Dimensions: v.Dimensions,
			Attributes: attributes(v.Attributes),
		})
	}
	return s, nil
}

func attributes(m api.AttributeMap) map[string]string {
	if m == nil {
		return nil
	}
	keys := m.Keys()
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, _ := m.Get(k)
		out[k] = fmt.Sprint(v)
	}
	return out
}
