package classifier

import "gopkg.in/yaml.v3"

// modulemdDoc models only the path this daemon reads from a modulemd document:
// data.xmd.mbs.rpms[*].ref (spec.md §3 "ref_overrides").
type modulemdDoc struct {
	Data struct {
		XMD struct {
			MBS struct {
				RPMs map[string]struct {
					Ref string `yaml:"ref"`
				} `yaml:"rpms"`
			} `yaml:"mbs"`
		} `yaml:"xmd"`
	} `yaml:"data"`
}

// ParseRefOverrides extracts the rpm-component -> pinned-git-ref map from a
// modulemd YAML document.
func ParseRefOverrides(modulemdStr string) (map[string]string, error) {
	var doc modulemdDoc
	if err := yaml.Unmarshal([]byte(modulemdStr), &doc); err != nil {
		return nil, err
	}
	overrides := make(map[string]string, len(doc.Data.XMD.MBS.RPMs))
	for comp, info := range doc.Data.XMD.MBS.RPMs {
		if info.Ref != "" {
			overrides[comp] = info.Ref
		}
	}
	return overrides, nil
}
