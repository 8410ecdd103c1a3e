package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/fti/internal/tasks"
	"github.com/tyemirov/fti/internal/utils"
)

const (
	testConfigurationNameConstant      = "fti"
	testConfigurationTypeConstant      = "yaml"
	testConfigurationFileNameConstant  = "fti.yaml"
	testEnvironmentPrefixConstant      = "FTI"
	testUserConfigurationDirectoryName = ".fti"
	testEmbeddedConfigurationConstant  = `environment:
  enabled: true
  directory: .venv
  indicator_variable: VIRTUAL_ENV
tasks:
  - name: features
    description: Daily feature pipeline.
    commands:
      - run: uv run ipython notebooks/2_daily_feature_pipeline.ipynb
  - name: all
    pre: [features]
`
)

type configurationFixture struct {
	Environment environmentFixture     `mapstructure:"environment"`
	Tasks       []tasks.TaskDefinition `mapstructure:"tasks"`
}

type environmentFixture struct {
	Enabled           bool   `mapstructure:"enabled"`
	Directory         string `mapstructure:"directory"`
	IndicatorVariable string `mapstructure:"indicator_variable"`
}

func newTestConfigurationLoader(searchPaths ...string) *utils.ConfigurationLoader {
	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, searchPaths)
	loader.SetEmbeddedConfiguration([]byte(testEmbeddedConfigurationConstant), testConfigurationTypeConstant)
	return loader
}

func taskNames(definitions []tasks.TaskDefinition) []string {
	names := make([]string, 0, len(definitions))
	for _, definition := range definitions {
		names = append(names, definition.Name)
	}
	return names
}

func TestConfigurationLoaderLayers(testInstance *testing.T) {
	testCases := []struct {
		name                string
		fileContent         string
		environmentValues   map[string]string
		expectedEnvironment environmentFixture
		expectedTasks       []string
		expectFileUsed      bool
	}{
		{
			name:                "EmbeddedCatalog",
			expectedEnvironment: environmentFixture{Enabled: true, Directory: ".venv", IndicatorVariable: "VIRTUAL_ENV"},
			expectedTasks:       []string{"features", "all"},
		},
		{
			name:                "FileReplacesTaskList",
			fileContent:         "environment:\n  directory: env\ntasks:\n  - name: lint\n    commands: [{run: make lint}]\n",
			expectedEnvironment: environmentFixture{Enabled: true, Directory: "env", IndicatorVariable: "VIRTUAL_ENV"},
			expectedTasks:       []string{"lint"},
			expectFileUsed:      true,
		},
		{
			name:        "EnvironmentOverridesFile",
			fileContent: "environment:\n  enabled: true\n  directory: env\n",
			environmentValues: map[string]string{
				"FTI_ENVIRONMENT_ENABLED":            "false",
				"FTI_ENVIRONMENT_INDICATOR_VARIABLE": "CONDA_PREFIX",
			},
			expectedEnvironment: environmentFixture{Enabled: false, Directory: "env", IndicatorVariable: "CONDA_PREFIX"},
			expectedTasks:       []string{"features", "all"},
			expectFileUsed:      true,
		},
		{
			name:                "EnvironmentOverridesEmbedded",
			environmentValues:   map[string]string{"FTI_ENVIRONMENT_DIRECTORY": "/opt/venvs/fingrid"},
			expectedEnvironment: environmentFixture{Enabled: true, Directory: "/opt/venvs/fingrid", IndicatorVariable: "VIRTUAL_ENV"},
			expectedTasks:       []string{"features", "all"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			searchDirectory := testInstance.TempDir()
			if len(testCase.fileContent) > 0 {
				require.NoError(testInstance, os.WriteFile(filepath.Join(searchDirectory, testConfigurationFileNameConstant), []byte(testCase.fileContent), 0o600))
			}
			for key, value := range testCase.environmentValues {
				testInstance.Setenv(key, value)
			}

			loadedConfiguration := configurationFixture{}
			metadata, loadError := newTestConfigurationLoader(searchDirectory).LoadConfiguration("", nil, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedEnvironment, loadedConfiguration.Environment)
			require.Equal(testInstance, testCase.expectedTasks, taskNames(loadedConfiguration.Tasks))

			if testCase.expectFileUsed {
				require.Equal(testInstance, filepath.Join(searchDirectory, testConfigurationFileNameConstant), metadata.ConfigFileUsed)
			} else {
				require.Empty(testInstance, metadata.ConfigFileUsed)
			}
		})
	}
}

func TestConfigurationLoaderDecodesTaskCatalog(testInstance *testing.T) {
	loadedConfiguration := configurationFixture{}
	_, loadError := newTestConfigurationLoader(testInstance.TempDir()).LoadConfiguration("", nil, &loadedConfiguration)
	require.NoError(testInstance, loadError)

	require.Equal(testInstance, []tasks.TaskDefinition{
		{
			Name:        "features",
			Description: "Daily feature pipeline.",
			Commands:    []tasks.CommandDefinition{{Run: "uv run ipython notebooks/2_daily_feature_pipeline.ipynb"}},
		},
		{Name: "all", Prerequisites: []string{"features"}},
	}, loadedConfiguration.Tasks)
}

func TestConfigurationLoaderSearchPaths(testInstance *testing.T) {
	testCases := []struct {
		name                  string
		directoriesWithFile   []string
		expectedDirectoryRole string
	}{
		{name: "WorkingDirectory", directoriesWithFile: []string{"working"}, expectedDirectoryRole: "working"},
		{name: "XDGDirectory", directoriesWithFile: []string{"xdg"}, expectedDirectoryRole: "xdg"},
		{name: "HomeDirectory", directoriesWithFile: []string{"home"}, expectedDirectoryRole: "home"},
		{name: "WorkingPreferred", directoriesWithFile: []string{"working", "xdg", "home"}, expectedDirectoryRole: "working"},
		{name: "XDGPreferredOverHome", directoriesWithFile: []string{"xdg", "home"}, expectedDirectoryRole: "xdg"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			homeDirectoryPath := testInstance.TempDir()
			directoryPathByRole := map[string]string{
				"working": testInstance.TempDir(),
				"xdg":     filepath.Join(homeDirectoryPath, "config", testUserConfigurationDirectoryName),
				"home":    filepath.Join(homeDirectoryPath, testUserConfigurationDirectoryName),
			}

			for _, directoryRole := range testCase.directoriesWithFile {
				directoryPath := directoryPathByRole[directoryRole]
				require.NoError(testInstance, os.MkdirAll(directoryPath, 0o755))
				content := "environment:\n  directory: " + directoryRole + "-venv\n"
				require.NoError(testInstance, os.WriteFile(filepath.Join(directoryPath, testConfigurationFileNameConstant), []byte(content), 0o600))
			}

			loader := newTestConfigurationLoader(directoryPathByRole["working"], directoryPathByRole["xdg"], directoryPathByRole["home"])

			loadedConfiguration := configurationFixture{}
			metadata, loadError := loader.LoadConfiguration("", nil, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedDirectoryRole+"-venv", loadedConfiguration.Environment.Directory)
			require.Equal(testInstance, filepath.Join(directoryPathByRole[testCase.expectedDirectoryRole], testConfigurationFileNameConstant), metadata.ConfigFileUsed)
		})
	}
}

func TestConfigurationLoaderExplicitFile(testInstance *testing.T) {
	testCases := []struct {
		name          string
		fileName      string
		content       string
		expectedTasks []string
	}{
		{
			name:          "YAML",
			fileName:      "custom.yml",
			content:       "tasks:\n  - name: lint\n    commands: [{run: make lint}]\n",
			expectedTasks: []string{"lint"},
		},
		{
			name:          "JSON",
			fileName:      "custom.json",
			content:       `{"environment": {"enabled": false}, "tasks": [{"name": "lint", "commands": [{"run": "make lint"}]}]}`,
			expectedTasks: []string{"lint"},
		},
		{
			name:          "TOML",
			fileName:      "custom.toml",
			content:       "[[tasks]]\nname = \"lint\"\n\n[[tasks.commands]]\nrun = \"make lint\"\n",
			expectedTasks: []string{"lint"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			searchDirectory := testInstance.TempDir()
			require.NoError(testInstance, os.WriteFile(
				filepath.Join(searchDirectory, testConfigurationFileNameConstant),
				[]byte("tasks:\n  - name: discovered\n    commands: [{run: make discovered}]\n"),
				0o600,
			))
			explicitPath := filepath.Join(testInstance.TempDir(), testCase.fileName)
			require.NoError(testInstance, os.WriteFile(explicitPath, []byte(testCase.content), 0o600))

			loadedConfiguration := configurationFixture{}
			metadata, loadError := newTestConfigurationLoader(searchDirectory).LoadConfiguration(explicitPath, nil, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedTasks, taskNames(loadedConfiguration.Tasks))
			require.Equal(testInstance, explicitPath, metadata.ConfigFileUsed)
		})
	}
}

func TestConfigurationLoaderFailures(testInstance *testing.T) {
	testInstance.Run("MissingTarget", func(testInstance *testing.T) {
		_, loadError := newTestConfigurationLoader().LoadConfiguration("", nil, nil)
		require.ErrorIs(testInstance, loadError, utils.ErrConfigurationTargetMissing)
	})

	testInstance.Run("DirectoryInSearchPath", func(testInstance *testing.T) {
		searchDirectory := testInstance.TempDir()
		require.NoError(testInstance, os.Mkdir(filepath.Join(searchDirectory, testConfigurationFileNameConstant), 0o755))

		_, loadError := newTestConfigurationLoader(searchDirectory).LoadConfiguration("", nil, &configurationFixture{})
		require.ErrorContains(testInstance, loadError, "is a directory")
	})

	testInstance.Run("MalformedFile", func(testInstance *testing.T) {
		explicitPath := filepath.Join(testInstance.TempDir(), "broken.json")
		require.NoError(testInstance, os.WriteFile(explicitPath, []byte(`{"tasks": [`), 0o600))

		_, loadError := newTestConfigurationLoader().LoadConfiguration(explicitPath, nil, &configurationFixture{})
		require.ErrorContains(testInstance, loadError, explicitPath)
	})
}
