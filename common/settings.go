package common

// Settings is what viper unmarshals settings.yaml, flags and AG_* variables into.
type Settings struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Storage struct {
		// Dir keeps every case ledger on disk when set
		Dir string `yaml:"dir"`
	} `yaml:"storage"`
	Audit struct {
		Format   string   `yaml:"format"`
		Scenario []string `yaml:"scenario"`
		Dump     bool     `yaml:"dump"`
	} `yaml:"audit"`
}
