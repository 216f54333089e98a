package simhost

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/marionette/api"
)

// BlankURL is the address of the empty document.
const BlankURL = "about:blank"

const blankPage = "<html><head></head><body></body></html>"

// Fixture describes the simulated application: what it reports about
// itself, the pages it can load and the windows open at start.
type Fixture struct {
	App     AppSpec         `yaml:"app"`
	Pages   map[string]Page `yaml:"pages"`
	Windows []WindowSpec    `yaml:"windows"`
}

// AppSpec is the application description reported to sessions.
type AppSpec struct {
	Name            string `yaml:"name"`
	Version         string `yaml:"version"`
	BuildID         string `yaml:"buildID"`
	AppID           string `yaml:"appID"`
	Platform        string `yaml:"platform"`
	PlatformName    string `yaml:"platformName"`
	PlatformVersion string `yaml:"platformVersion"`
	Device          string `yaml:"device"`
	Mobile          bool   `yaml:"mobile"`
}

// Page is a document the application can navigate to.
type Page struct {
	Source string `yaml:"source"`
	// Remote pages load in a content process.
	Remote bool `yaml:"remote"`
	// Loading pages stay in the interactive state until Host.FinishLoad.
	Loading bool `yaml:"loading"`
}

// WindowSpec is a chrome window open at start.
type WindowSpec struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Chrome string `yaml:"chrome"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// Tabs of the window. A window without tabs shows Content.
	Tabs    []TabSpec `yaml:"tabs"`
	Content string    `yaml:"content"`
	// Loading windows report not ready until Window.SetReady.
	Loading bool `yaml:"loading"`
}

// TabSpec is a tab open at start.
type TabSpec struct {
	URL string `yaml:"url"`
}

// DefaultFixture is a desktop browser with one blank tab.
func DefaultFixture() *Fixture {
	return &Fixture{
		App: AppSpec{
			Name:            "Firefox",
			Version:         "38.0a1",
			BuildID:         "20150201030205",
			AppID:           "{ec8030f7-c20a-464f-9b0e-13a3a9e97384}",
			Platform:        "Linux",
			PlatformName:    "linux",
			PlatformVersion: "3.19.0",
			Device:          "desktop",
		},
		Pages: map[string]Page{},
		Windows: []WindowSpec{{
			Name:   "main",
			Type:   "navigator:browser",
			Chrome: `<window id="main-window" title="Nightly"><browser id="content" type="content-primary"></browser></window>`,
			Width:  1280,
			Height: 800,
			Tabs:   []TabSpec{{URL: BlankURL}},
		}},
	}
}

// LoadFixture reads a YAML fixture from fs.
func LoadFixture(fs afero.Fs, path string) (*Fixture, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	f := &Fixture{}
	if err := yaml.Unmarshal(b, f); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture %s: %w", path, err)
	}
	return f, nil
}

func (f *Fixture) validate() error {
	if f.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if len(f.Windows) == 0 {
		return fmt.Errorf("at least one window is required")
	}
	for i, w := range f.Windows {
		if w.Type == "" {
			return fmt.Errorf("window %d has no type", i)
		}
	}
	return nil
}

// Info returns the application description.
func (a AppSpec) Info() api.AppInfo {
	return api.AppInfo{
		Name:            a.Name,
		Version:         a.Version,
		BuildID:         a.BuildID,
		AppID:           a.AppID,
		Platform:        a.Platform,
		PlatformName:    a.PlatformName,
		PlatformVersion: a.PlatformVersion,
		Device:          a.Device,
		Mobile:          a.Mobile,
	}
}
