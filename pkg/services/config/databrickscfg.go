package config

import (
	"context"
	"fmt"

	"github.com/databricks/databricks-sdk-go/config"
	"gopkg.in/ini.v1"
)

// Registry resolves workspace credentials from a databrickscfg profile
// file. The collectors use it to build SDK and warehouse connections.
type Registry interface {
	GetProfiles(ctx context.Context) ([]string, error)
	GetConfig(ctx context.Context, profile string) (*config.Config, error)
	// GetWarehousePath returns the profile's SQL warehouse http_path, used
	// by the billing collector's DSN.
	GetWarehousePath(ctx context.Context, profile string) (string, error)
}

type cfgRegistry struct {
	cfg *ini.File
}

func NewRegistry(path string) (Registry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return &cfgRegistry{cfg: cfg}, nil
}

func (cr *cfgRegistry) GetProfiles(_ context.Context) ([]string, error) {
	var profiles []string
	for _, section := range cr.cfg.Sections() {
		if len(section.Keys()) > 0 {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles, nil
}

func (cr *cfgRegistry) GetConfig(_ context.Context, profile string) (*config.Config, error) {
	section := cr.cfg.Section(profile)
	if section == nil {
		return nil, fmt.Errorf("profile %s not found", profile)
	}

	return &config.Config{
		Host:  section.Key("host").String(),
		Token: section.Key("token").String(),
	}, nil
}

func (cr *cfgRegistry) GetWarehousePath(_ context.Context, profile string) (string, error) {
	section := cr.cfg.Section(profile)
	if section == nil {
		return "", fmt.Errorf("profile %s not found", profile)
	}
	return section.Key("http_path").String(), nil
}
