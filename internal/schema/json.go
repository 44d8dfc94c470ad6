package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// The on-disk schema document mirrors the rewrite forms one-to-one:
//
//	{
//	  "namespaces": {
//	    "document": {
//	      "relations": {
//	        "owner":  {"this": {}},
//	        "parent": {"this": {}},
//	        "viewer": {"union": [
//	          {"this": {}},
//	          {"computed_userset": {"relation": "owner"}},
//	          {"tuple_to_userset": {"tupleset": "parent", "computed_userset": "viewer"}}
//	        ]}
//	      }
//	    }
//	  }
//	}

type jsonDocument struct {
	Namespaces map[string]jsonNamespace `json:"namespaces"`
}

type jsonNamespace struct {
	Relations map[string]jsonRule `json:"relations"`
}

type jsonRule struct {
	This            *struct{}            `json:"this,omitempty"`
	ComputedUserset *jsonComputedUserset `json:"computed_userset,omitempty"`
	TupleToUserset  *jsonTupleToUserset  `json:"tuple_to_userset,omitempty"`
	Union           []jsonRule           `json:"union,omitempty"`
	Intersection    []jsonRule           `json:"intersection,omitempty"`
	Exclusion       *jsonExclusion       `json:"exclusion,omitempty"`
}

type jsonComputedUserset struct {
	Relation string `json:"relation"`
}

type jsonTupleToUserset struct {
	Tupleset        string `json:"tupleset"`
	ComputedUserset string `json:"computed_userset"`
}

type jsonExclusion struct {
	Base     jsonRule `json:"base"`
	Subtract jsonRule `json:"subtract"`
}

// Parse decodes and validates a JSON schema document.
func Parse(data []byte) (*Schema, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	namespaces := make([]Namespace, 0, len(doc.Namespaces))
	for typeName, jns := range doc.Namespaces {
		ns := Namespace{Type: typeName, Relations: make(map[string]Rule, len(jns.Relations))}
		for relName, jr := range jns.Relations {
			rule, err := jr.rule()
			if err != nil {
				return nil, fmt.Errorf("%w: %s#%s: %v", ErrInvalidSchema, typeName, relName, err)
			}
			ns.Relations[relName] = rule
		}
		namespaces = append(namespaces, ns)
	}
	return New(namespaces...)
}

// Load reads and parses a schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

func (jr jsonRule) rule() (Rule, error) {
	set := 0
	var rule Rule
	if jr.This != nil {
		set++
		rule = Direct()
	}
	if jr.ComputedUserset != nil {
		set++
		rule = ComputedUserset(jr.ComputedUserset.Relation)
	}
	if jr.TupleToUserset != nil {
		set++
		rule = TupleToUserset(jr.TupleToUserset.Tupleset, jr.TupleToUserset.ComputedUserset)
	}
	if jr.Union != nil {
		set++
		children, err := childRules(jr.Union)
		if err != nil {
			return Rule{}, err
		}
		rule = Union(children...)
	}
	if jr.Intersection != nil {
		set++
		children, err := childRules(jr.Intersection)
		if err != nil {
			return Rule{}, err
		}
		rule = Intersection(children...)
	}
	if jr.Exclusion != nil {
		set++
		base, err := jr.Exclusion.Base.rule()
		if err != nil {
			return Rule{}, err
		}
		subtract, err := jr.Exclusion.Subtract.rule()
		if err != nil {
			return Rule{}, err
		}
		rule = Exclusion(base, subtract)
	}
	if set != 1 {
		return Rule{}, fmt.Errorf("rule must set exactly one form, got %d", set)
	}
	return rule, nil
}

func childRules(jrs []jsonRule) ([]Rule, error) {
	out := make([]Rule, 0, len(jrs))
	for _, jr := range jrs {
		rule, err := jr.rule()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}
