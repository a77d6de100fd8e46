package evaluation

// Skill scores over a contingency table. A zero denominator yields 1.0
// instead of a division error.

// PercentCorrect is (a+d)/(a+b+c+d).
func PercentCorrect(t ContingencyTable) float64 {
	a, b, c, d := t.Cells()
	return ratio(a+d, a+b+c+d)
}

// HeidkeSkillScore is 2(ad−bc) / [(a+c)(c+d) + (a+b)(b+d)].
func HeidkeSkillScore(t ContingencyTable) float64 {
	a, b, c, d := t.Cells()
	return ratio(2*(a*d-b*c), (a+c)*(c+d)+(a+b)*(b+d))
}

// TrueSkillStatistic is (ad−bc) / [(a+c)(b+d)].
func TrueSkillStatistic(t ContingencyTable) float64 {
	a, b, c, d := t.Cells()
	return ratio(a*d-b*c, (a+c)*(b+d))
}

// GilbertSkillScore is (a−aRef) / (a−aRef+b+c) with
// aRef = (a+b)(a+c)/(a+b+c+d).
func GilbertSkillScore(t ContingencyTable) float64 {
	a, b, c, d := t.Cells()
	n := a + b + c + d
	if n == 0 {
		return 1.0
	}
	aRef := (a + b) * (a + c) / n
	return ratio(a-aRef, a-aRef+b+c)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 1.0
	}
	return num / den
}
