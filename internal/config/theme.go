package config

// Console themes, applied as the data-theme attribute of the page.
const (
	LightTheme string = "light"
	DarkTheme  string = "dark"

	// Icons offer the opposite theme on the toggle button.
	LightThemeIcon string = `<span class="theme-icon" aria-label="Light theme">&#9728;</span>`
	DarkThemeIcon  string = `<span class="theme-icon" aria-label="Dark theme">&#9790;</span>`

	DefaultDarkSyntaxTheme  string = "monokai"
	DefaultLightSyntaxTheme string = "github"

	DefaultTheme string = LightTheme
)
