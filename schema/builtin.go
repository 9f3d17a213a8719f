package schema

// Built-in template IDs.
const (
	AdvanceFeeID = "advance-fee"
)

// Canonical field keys the pipeline treats specially.
const (
	FieldType    = "type"
	FieldSummary = "summary"
	FieldAlias   = "alias"
	FieldRemarks = "remarks"
)

var advanceFee = Schema{
	ID:          AdvanceFeeID,
	Name:        "Advance-Fee Scam",
	Description: "Fee to be paid to receive an inheritance",
	Sections: []Section{
		{
			Title: "Main Info:",
			Fields: []Field{
				{Key: FieldType, Label: "Type of scam", Kind: KindText, Default: "Advance-Fee Scam"},
				{Key: FieldSummary, Label: "Short summary", Kind: KindText, Default: "Fee to be paid to receive an inheritance"},
				{Key: FieldAlias, Label: "Scammers aliase(s)", Kind: KindList, Required: true},
				{Key: "emails", Label: "Email(s)", Kind: KindList},
				{Key: "websites", Label: "Website(s)", Kind: KindList},
				{Key: "ips", Label: "IPs", Kind: KindList},
				{Key: "locations", Label: "Geo location(s)", Kind: KindList},
				{Key: "started", Label: "Started", Kind: KindDate},
			},
		},
		{
			Title: "Payment Information:",
			Fields: []Field{
				{Key: "amount", Label: "Fee/Amount", Kind: KindCurrency},
				{Key: "bank_info", Label: "Bank Account", Kind: KindMultiline},
				{Key: "other_payments", Label: "Other payment methods", Kind: KindPayments},
			},
		},
		{
			Title: "Evidence:",
			Fields: []Field{
				{Key: "scammer_names", Label: "Scammers real name", Kind: KindList},
				{Key: "passport_ids", Label: "Scammers passport/ID", Kind: KindImages},
				{Key: "scammer_photos", Label: "Photo of scammer", Kind: KindImages},
				{Key: "victim_ids", Label: "Possible Victim / Money-Mule ID", Kind: KindImages},
				{Key: "others", Label: "Others", Kind: KindImages},
			},
		},
		{
			Title: "Remarks:",
			Fields: []Field{
				{Key: FieldRemarks, Label: "Remarks", Kind: KindList},
			},
		},
	},
	FilenameField: FieldAlias,
	RemarksField:  FieldRemarks,
}

// Builtins returns the built-in templates in declaration order.
func Builtins() []Schema {
	return []Schema{advanceFee}
}

// Builtin returns the built-in template with the given id.
func Builtin(id string) (Schema, bool) {
	for _, s := range Builtins() {
		if s.ID == id {
			return s, true
		}
	}
	return Schema{}, false
}
