package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationKeyDelimiterConstant            = "."
	environmentKeyDelimiterConstant              = "_"
	embeddedConfigurationReadErrorTemplate       = "unable to read embedded configuration: %w"
	configurationFileReadErrorTemplate           = "unable to read configuration file %s: %w"
	configurationDecodeErrorTemplate             = "unable to decode configuration: %w"
	configurationTargetMissingMessageConstant    = "configuration target not provided"
	configurationFileStatErrorTemplateConstant   = "unable to inspect configuration path %s: %w"
	configurationFileIsDirectoryTemplateConstant = "configuration path %s is a directory"
)

// fileConfigurationTypes lists the file extensions decoded by their own format.
var fileConfigurationTypes = []string{"yaml", "yml", "json", "toml"}

// ErrConfigurationTargetMissing indicates LoadConfiguration was called without a decode target.
var ErrConfigurationTargetMissing = errors.New(configurationTargetMissingMessageConstant)

// LoadedConfiguration describes where the effective configuration came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers embedded defaults, a configuration file, and environment overrides.
type ConfigurationLoader struct {
	configurationName     string
	configurationType     string
	environmentPrefix     string
	searchPaths           []string
	embeddedConfiguration []byte
	embeddedType          string
}

// NewConfigurationLoader constructs a loader that searches the provided directories in order.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string{}, searchPaths...),
	}
}

// SetEmbeddedConfiguration registers configuration content merged beneath any file on disk.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	loader.embeddedConfiguration = append([]byte{}, configurationData...)
	loader.embeddedType = configurationType
}

// LoadConfiguration decodes the layered configuration into target.
// An explicit configurationFilePath takes precedence over the search paths.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, target any) (LoadedConfiguration, error) {
	if target == nil {
		return LoadedConfiguration{}, ErrConfigurationTargetMissing
	}

	configurationReader := viper.New()
	for key, value := range defaultValues {
		configurationReader.SetDefault(key, value)
	}

	if len(loader.embeddedConfiguration) > 0 {
		embeddedType := loader.embeddedType
		if len(embeddedType) == 0 {
			embeddedType = loader.configurationType
		}
		configurationReader.SetConfigType(embeddedType)
		if mergeError := configurationReader.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationReadErrorTemplate, mergeError)
		}
	}

	resolvedFilePath := strings.TrimSpace(configurationFilePath)
	if len(resolvedFilePath) == 0 {
		discoveredPath, discoveryError := loader.discoverConfigurationFile()
		if discoveryError != nil {
			return LoadedConfiguration{}, discoveryError
		}
		resolvedFilePath = discoveredPath
	}

	if len(resolvedFilePath) > 0 {
		configurationReader.SetConfigFile(resolvedFilePath)
		configurationReader.SetConfigType(loader.fileConfigurationType(resolvedFilePath))
		if mergeError := configurationReader.MergeInConfig(); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationFileReadErrorTemplate, resolvedFilePath, mergeError)
		}
	}

	if len(loader.environmentPrefix) > 0 {
		configurationReader.SetEnvPrefix(loader.environmentPrefix)
	}
	configurationReader.SetEnvKeyReplacer(strings.NewReplacer(configurationKeyDelimiterConstant, environmentKeyDelimiterConstant))
	configurationReader.AutomaticEnv()

	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           target,
		WeaklyTypedInput: true,
	})
	if decoderError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplate, decoderError)
	}
	if decodeError := decoder.Decode(configurationReader.AllSettings()); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplate, decodeError)
	}

	return LoadedConfiguration{ConfigFileUsed: resolvedFilePath}, nil
}

func (loader *ConfigurationLoader) discoverConfigurationFile() (string, error) {
	fileName := loader.configurationName + "." + loader.configurationType
	for _, searchPath := range loader.searchPaths {
		trimmedSearchPath := strings.TrimSpace(searchPath)
		if len(trimmedSearchPath) == 0 {
			continue
		}
		candidatePath := filepath.Join(trimmedSearchPath, fileName)
		fileInfo, statError := os.Stat(candidatePath)
		if statError != nil {
			if errors.Is(statError, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf(configurationFileStatErrorTemplateConstant, candidatePath, statError)
		}
		if fileInfo.IsDir() {
			return "", fmt.Errorf(configurationFileIsDirectoryTemplateConstant, candidatePath)
		}
		return candidatePath, nil
	}
	return "", nil
}

// fileConfigurationType replaces the embedded content type so the file decodes by its own extension.
func (loader *ConfigurationLoader) fileConfigurationType(configurationFilePath string) string {
	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(configurationFilePath), "."))
	if slices.Contains(fileConfigurationTypes, extension) {
		return extension
	}
	return loader.configurationType
}
