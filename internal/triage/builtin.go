package triage

// BuiltinRules returns the default flag set loaded when no rule file is
// configured.
func BuiltinRules() []*Rule {
	return []*Rule{
		{
			Name:        "high_value",
			Description: "Transaction exceeds half of the account balance",
			Expression:  "amount_to_balance_ratio > 0.5",
			Enabled:     true,
		},
		{
			Name:        "night_cross_border",
			Description: "Cross-border transaction during night hours",
			Expression:  "is_night_time && is_cross_border",
			Enabled:     true,
		},
		{
			Name:        "pin_exhausted",
			Description: "Invalid PIN retry count reached the limit",
			Expression:  "pin_retry_limit > 0.0 && pin_retry_count >= pin_retry_limit",
			Enabled:     true,
		},
		{
			Name:        "rapid_repeat",
			Description: "Less than five minutes since the previous transaction",
			Expression:  "hours_since_prev >= 0.0 && hours_since_prev < 0.084",
			Enabled:     true,
		},
		{
			Name:        "excessive_logins",
			Description: "More than three login attempts before the transaction",
			Expression:  "login_attempts > 3.0",
			Enabled:     true,
		},
	}
}
