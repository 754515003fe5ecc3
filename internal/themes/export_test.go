package themes

// CreateTheme exposes the insert path so tests can force the unique index race.
var CreateTheme = createTheme
