package model

// Centralized icons for the tree views
// Using simple single-width characters for consistent terminal rendering
const (
	IconCollapsed = "▸"
	IconExpanded  = "▾"
	IconLeaf      = " "
	IconDrive     = "◆" // Volume root
	IconArchive   = "≡" // Archive file or extracted archive
	IconHidden    = "·"
	IconMissing   = "✗"
	IconLazy      = "…" // Children not yet loaded
)
