package contracts

// Record is one raw vehicle-insurance application row as stored in the
// document database. The Response column is the binary target label.
type Record struct {
	ID                 int64   `bson:"id" json:"id"`
	Gender             string  `bson:"Gender" json:"gender"`
	Age                float64 `bson:"Age" json:"age"`
	DrivingLicense     float64 `bson:"Driving_License" json:"driving_license"`
	RegionCode         float64 `bson:"Region_Code" json:"region_code"`
	PreviouslyInsured  float64 `bson:"Previously_Insured" json:"previously_insured"`
	VehicleAge         string  `bson:"Vehicle_Age" json:"vehicle_age"`
	VehicleDamage      string  `bson:"Vehicle_Damage" json:"vehicle_damage"`
	AnnualPremium      float64 `bson:"Annual_Premium" json:"annual_premium"`
	PolicySalesChannel float64 `bson:"Policy_Sales_Channel" json:"policy_sales_channel"`
	Vintage            float64 `bson:"Vintage" json:"vintage"`
	Response           float64 `bson:"Response" json:"response"`
}

// ValueKind distinguishes numeric and categorical column values.
type ValueKind int

const (
	ValueNumeric ValueKind = iota
	ValueCategorical
)

// Value is a single typed column value pulled out of a Record.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

// Column names as they appear in the source documents. These are the only
// columns the pipeline knows; schema definitions reference them by name.
const (
	ColGender             = "Gender"
	ColAge                = "Age"
	ColDrivingLicense     = "Driving_License"
	ColRegionCode         = "Region_Code"
	ColPreviouslyInsured  = "Previously_Insured"
	ColVehicleAge         = "Vehicle_Age"
	ColVehicleDamage      = "Vehicle_Damage"
	ColAnnualPremium      = "Annual_Premium"
	ColPolicySalesChannel = "Policy_Sales_Channel"
	ColVintage            = "Vintage"
	ColResponse           = "Response"
)

// Field returns the value for the named column and whether the column exists
// on the record type at all.
func (r Record) Field(name string) (Value, bool) {
	switch name {
	case ColGender:
		return Value{Kind: ValueCategorical, Str: r.Gender}, true
	case ColAge:
		return Value{Kind: ValueNumeric, Num: r.Age}, true
	case ColDrivingLicense:
		return Value{Kind: ValueNumeric, Num: r.DrivingLicense}, true
	case ColRegionCode:
		return Value{Kind: ValueNumeric, Num: r.RegionCode}, true
	case ColPreviouslyInsured:
		return Value{Kind: ValueNumeric, Num: r.PreviouslyInsured}, true
	case ColVehicleAge:
		return Value{Kind: ValueCategorical, Str: r.VehicleAge}, true
	case ColVehicleDamage:
		return Value{Kind: ValueCategorical, Str: r.VehicleDamage}, true
	case ColAnnualPremium:
		return Value{Kind: ValueNumeric, Num: r.AnnualPremium}, true
	case ColPolicySalesChannel:
		return Value{Kind: ValueNumeric, Num: r.PolicySalesChannel}, true
	case ColVintage:
		return Value{Kind: ValueNumeric, Num: r.Vintage}, true
	case ColResponse:
		return Value{Kind: ValueNumeric, Num: r.Response}, true
	default:
		return Value{}, false
	}
}

// Label returns the binary target label.
func (r Record) Label() float64 {
	return r.Response
}
