package recommend

// FeedbackPolicy holds the outcome re-ranking constants.
type FeedbackPolicy struct {
	HiredBoost        float64 `mapstructure:"hired-boost"`
	AttributeRate     float64 `mapstructure:"attribute-rate"`
	AttributeMinHires int     `mapstructure:"attribute-min-hires"`
	AttributeCap      float64 `mapstructure:"attribute-cap"`
	MaxBoost          float64 `mapstructure:"max-boost"`
}

// Options configure a Recommender.
type Options struct {
	Neighbors           int            `mapstructure:"neighbors"`
	CollaborativeWeight float64        `mapstructure:"collaborative-weight"`
	ContentWeight       float64        `mapstructure:"content-weight"`
	Feedback            FeedbackPolicy `mapstructure:"feedback"`
}

// DefaultOptions returns K=20 neighbors, a 0.4/0.6 blend and the default boosts.
func DefaultOptions() Options {
	return Options{
		Neighbors:           20,
		CollaborativeWeight: 0.4,
		ContentWeight:       0.6,
		Feedback: FeedbackPolicy{
			HiredBoost:        0.3,
			AttributeRate:     0.02,
			AttributeMinHires: 5,
			AttributeCap:      0.1,
			MaxBoost:          0.5,
		},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Neighbors <= 0 {
		o.Neighbors = d.Neighbors
	}
	if o.CollaborativeWeight <= 0 && o.ContentWeight <= 0 {
		o.CollaborativeWeight, o.ContentWeight = d.CollaborativeWeight, d.ContentWeight
	}
	if o.Feedback == (FeedbackPolicy{}) {
		o.Feedback = d.Feedback
	}
	return o
}
