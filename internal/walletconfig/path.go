package walletconfig

import (
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

type Path string

func (p Path) Join(elem ...string) Path {
	parts := append([]string{string(p)}, elem...)
	return Path(filepath.Join(parts...))
}

func (p Path) ToString() string {
	return string(p)
}

// Load reads a TOML config file at path into cfg, applying env var
// overrides declared via `env` struct tags.
func Load(path Path, cfg any) error {
	return cleanenv.ReadConfig(path.ToString(), cfg)
}
