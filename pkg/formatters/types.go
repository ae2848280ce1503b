package formatters

// TimestampLayout is the layout of the timestamp segment, in microseconds.
const TimestampLayout = "20060102-15:04:05.000000"

// Separator delimits the segments of a rendered line.
const Separator = '|'

// Options controls which segments prefix the message body. The tags let a
// back-end embed Options in its settings struct and decode it straight
// from configuration.
type Options struct {
	Timestamp    bool `mapstructure:"timestamp"`
	ShowLevel    bool `mapstructure:"show-level"`
	ShowIdent    bool `mapstructure:"show-ident"`
	ShowLocation bool `mapstructure:"show-location"`
	NewLine      bool `mapstructure:"-"`
}

// DefaultOptions returns the options used when a back-end configuration
// does not override them.
func DefaultOptions() Options {
	return Options{
		Timestamp:    true,
		ShowLevel:    true,
		ShowIdent:    false,
		ShowLocation: true,
		NewLine:      true,
	}
}

