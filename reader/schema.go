package reader

// Info summarizes a dataset for display.
type Info struct {
	Path             string            `json:"path,omitempty" yaml:"path,omitempty"`
	FileSize         int64             `json:"file_size,omitempty" yaml:"file_size,omitempty"`
	Dimensions       []Dimension       `json:"dimensions" yaml:"dimensions"`
	Variables        []VariableInfo    `json:"variables" yaml:"variables"`
	GlobalAttributes map[string]string `json:"global_attributes,omitempty" yaml:"global_attributes,omitempty"`
	TotalDimensions  int               `json:"total_dimensions" yaml:"total_dimensions"`
	TotalVariables   int               `json:"total_variables" yaml:"total_variables"`
}

// VariableInfo represents metadata about a single variable.
type VariableInfo struct {
	Name       string            `json:"name" yaml:"name"`
	Type       string            `json:"data_type" yaml:"data_type"`
	Dimensions []string          `json:"dimensions" yaml:"dimensions"`
	Shape      []int             `json:"shape" yaml:"shape"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// DescribeOptions controls what Describe reports.
type DescribeOptions struct {
	// Variable restricts the report to one variable when set.
	Variable string
	// Detailed includes variable and global attributes.
	Detailed bool
}

// Describe extracts dimension and variable metadata from p.
//
// Shapes are derived from the declared dimension lengths. With a Variable
// filter that matches nothing, Variables is empty.
func Describe(p Provider, opts DescribeOptions) Info {
	dims := p.Dimensions()
	lengths := make(map[string]int, len(dims))
	for _, d := range dims {
		lengths[d.Name] = d.Len
	}

	info := Info{
		Dimensions:      dims,
		TotalDimensions: len(dims),
	}

	all := p.Variables()
	info.TotalVariables = len(all)
	for _, v := range all {
		if opts.Variable != "" && v.Name != opts.Variable {
			continue
		}
		vi := VariableInfo{
			Name:       v.Name,
			Type:       v.Type,
			Dimensions: v.Dimensions,
			Shape:      make([]int, len(v.Dimensions)),
		}
		for i, dn := range v.Dimensions {
			vi.Shape[i] = lengths[dn]
		}
		if opts.Detailed {
			vi.Attributes = v.Attributes
		}
		info.Variables = append(info.Variables, vi)
	}

	if opts.Detailed {
		info.GlobalAttributes = p.Attributes()
	}
	return info
}

// AttributeKeys returns the keys of attrs in ascending order.
func AttributeKeys(attrs map[string]string) []string {
	return sortedKeys(attrs)
}
