package analysis

import (
	"strings"
	"time"

	"stealthcompany.com/clinicportal/internal/clinic"
)

// MockAnalysis returns canned findings chosen by file name: blood/cbc gives a
// blood count, lipid/cholesterol a lipid profile, anything else a general
// checkup.
func MockAnalysis(fileName string, now time.Time) *clinic.Analysis {
	name := strings.ToLower(fileName)
	switch {
	case strings.Contains(name, "blood") || strings.Contains(name, "cbc"):
		return bloodCount(now.UTC())
	case strings.Contains(name, "lipid") || strings.Contains(name, "cholesterol"):
		return lipidProfile(now.UTC())
	default:
		return generalCheckup(now.UTC())
	}
}

func bloodCount(at time.Time) *clinic.Analysis {
	return &clinic.Analysis{
		Summary:    "Complete Blood Count (CBC) report shows mostly normal parameters with slight elevation in white blood cell count, which may indicate a mild infection or inflammation.",
		ReportType: "Complete Blood Count (CBC)",
		Parameters: []clinic.HealthParameter{
			{Name: "Hemoglobin", Value: "14.2", Unit: "g/dL", NormalRange: "13.0-17.0", Status: "normal", Category: "Blood"},
			{Name: "White Blood Cells", Value: "11.5", Unit: "×10³/μL", NormalRange: "4.0-10.0", Status: "high", Category: "Blood"},
			{Name: "Platelets", Value: "250", Unit: "×10³/μL", NormalRange: "150-400", Status: "normal", Category: "Blood"},
			{Name: "Red Blood Cells", Value: "4.8", Unit: "×10⁶/μL", NormalRange: "4.5-5.5", Status: "normal", Category: "Blood"},
		},
		RiskFactors: []clinic.RiskFactor{{
			Severity:       "low",
			Title:          "Elevated White Blood Cell Count",
			Description:    "Your white blood cell count is slightly above the normal range at 11.5 ×10³/μL. This could indicate a mild infection, inflammation, or stress response.",
			Recommendation: "Monitor for symptoms like fever or fatigue. Consult your doctor if symptoms persist. Retest in 2-3 weeks if asymptomatic.",
		}},
		Recommendations: []string{
			"Stay well-hydrated and get adequate rest",
			"Monitor for any signs of infection (fever, pain, fatigue)",
			"Follow up with your doctor if WBC count remains elevated",
			"Maintain a balanced diet rich in vitamins and minerals",
		},
		AnalyzedAt: at,
	}
}

func lipidProfile(at time.Time) *clinic.Analysis {
	return &clinic.Analysis{
		Summary:    "Lipid profile shows elevated LDL cholesterol and total cholesterol levels, indicating increased cardiovascular risk. HDL cholesterol is within normal range.",
		ReportType: "Lipid Profile",
		Parameters: []clinic.HealthParameter{
			{Name: "Total Cholesterol", Value: "220", Unit: "mg/dL", NormalRange: "<200", Status: "high", Category: "Lipid Profile"},
			{Name: "LDL Cholesterol", Value: "145", Unit: "mg/dL", NormalRange: "<100", Status: "high", Category: "Lipid Profile"},
			{Name: "HDL Cholesterol", Value: "48", Unit: "mg/dL", NormalRange: ">40", Status: "normal", Category: "Lipid Profile"},
			{Name: "Triglycerides", Value: "165", Unit: "mg/dL", NormalRange: "<150", Status: "high", Category: "Lipid Profile"},
		},
		RiskFactors: []clinic.RiskFactor{
			{
				Severity:       "medium",
				Title:          "High LDL Cholesterol",
				Description:    "Your LDL (bad) cholesterol is elevated at 145 mg/dL, which increases the risk of heart disease and stroke.",
				Recommendation: "Adopt a heart-healthy diet low in saturated fats, increase physical activity, and consider statin therapy if recommended by your doctor.",
			},
			{
				Severity:       "medium",
				Title:          "Elevated Triglycerides",
				Description:    "Triglyceride levels are slightly above normal, which can contribute to atherosclerosis.",
				Recommendation: "Reduce sugar and refined carbohydrate intake, limit alcohol, and increase omega-3 fatty acids in your diet.",
			},
		},
		Recommendations: []string{
			"Follow a Mediterranean or DASH diet",
			"Exercise for at least 30 minutes, 5 days a week",
			"Limit saturated fats and trans fats",
			"Include more fiber-rich foods in your diet",
			"Consult a cardiologist for personalized treatment plan",
		},
		AnalyzedAt: at,
	}
}

func generalCheckup(at time.Time) *clinic.Analysis {
	return &clinic.Analysis{
		Summary:    "General health checkup shows overall good health with some areas requiring attention. Blood sugar is slightly elevated, and vitamin D levels are low.",
		ReportType: "General Health Checkup",
		Parameters: []clinic.HealthParameter{
			{Name: "Fasting Blood Sugar", Value: "108", Unit: "mg/dL", NormalRange: "70-100", Status: "high", Category: "Blood Sugar"},
			{Name: "Vitamin D", Value: "18", Unit: "ng/mL", NormalRange: "30-100", Status: "low", Category: "Vitamins"},
			{Name: "Hemoglobin", Value: "14.5", Unit: "g/dL", NormalRange: "13.0-17.0", Status: "normal", Category: "Blood"},
			{Name: "Creatinine", Value: "0.9", Unit: "mg/dL", NormalRange: "0.6-1.2", Status: "normal", Category: "Kidney"},
			{Name: "SGPT (ALT)", Value: "32", Unit: "U/L", NormalRange: "7-56", Status: "normal", Category: "Liver"},
		},
		RiskFactors: []clinic.RiskFactor{
			{
				Severity:       "medium",
				Title:          "Pre-Diabetic Blood Sugar Level",
				Description:    "Fasting blood sugar at 108 mg/dL indicates pre-diabetes. This increases your risk of developing type 2 diabetes.",
				Recommendation: "Adopt lifestyle changes including regular exercise, weight management, and a low-glycemic diet. Monitor blood sugar regularly.",
			},
			{
				Severity:       "low",
				Title:          "Vitamin D Deficiency",
				Description:    "Low vitamin D levels can affect bone health, immune function, and mood.",
				Recommendation: "Increase sun exposure (15-20 minutes daily), consume vitamin D-rich foods, or take supplements as prescribed.",
			},
		},
		Recommendations: []string{
			"Get 30-45 minutes of daily exercise",
			"Reduce refined sugar and carbohydrate intake",
			"Take Vitamin D supplements (1000-2000 IU daily)",
			"Get 15-20 minutes of sun exposure daily",
			"Retest blood sugar in 3 months",
			"Schedule follow-up with your doctor",
		},
		AnalyzedAt: at,
	}
}
