package ocr

// TesseractOptions configure a TesseractRecogniser.
type TesseractOptions struct {
	Language       string // default "eng"
	Level          Level  // default LevelWord
	TessdataPrefix string // empty uses the system tessdata
	Whitelist      string // default PlateWhitelist; "-" disables
}

func (o TesseractOptions) withDefaults() TesseractOptions {
	if o.Language == "" {
		o.Language = "eng"
	}
	if o.Level == "" {
		o.Level = LevelWord
	}
	switch o.Whitelist {
	case "":
		o.Whitelist = PlateWhitelist
	case "-":
		o.Whitelist = ""
	}
	return o
}
