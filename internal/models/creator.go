package models

// Creator is a persona whose knowledge partition can be searched
type Creator struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Slug          string   `yaml:"slug" json:"slug"`
	Specialty     string   `yaml:"specialty" json:"specialty"`
	Description   string   `yaml:"description" json:"description"`
	Tone          string   `yaml:"tone" json:"tone"`
	LanguageStyle string   `yaml:"language_style" json:"language_style"`
	Expertise     []string `yaml:"expertise_areas" json:"expertise_areas"`
	IsActive      bool     `yaml:"is_active" json:"is_active"`
}

// Ref returns the corpus reference for this creator
func (c Creator) Ref() CreatorCorpusRef {
	return CreatorCorpusRef(c.ID)
}

// CreatorsFile is the YAML document listing creator personas
type CreatorsFile struct {
	Creators []Creator `yaml:"creators"`
}
