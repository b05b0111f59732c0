package validate

import (
	"net/mail"
	"regexp"
	"strings"
)

var postalCodeGrammars = map[string]*regexp.Regexp{
	"DE": regexp.MustCompile(`^\d{5}$`),
	"AT": regexp.MustCompile(`^\d{4}$`),
	"CH": regexp.MustCompile(`^\d{4}$`),
	"LI": regexp.MustCompile(`^(948[5-9]|949[0-7])$`),
	"LU": regexp.MustCompile(`^\d{4}$`),
	"BE": regexp.MustCompile(`^\d{4}$`),
	"DK": regexp.MustCompile(`^\d{4}$`),
	"NL": regexp.MustCompile(`(?i)^\d{4}[a-z]{2}$`),
	"FR": regexp.MustCompile(`^\d{5}$`),
	"IT": regexp.MustCompile(`^\d{5}$`),
	"PL": regexp.MustCompile(`^\d{2}-?\d{3}$`),
	"US": regexp.MustCompile(`^\d{5}(-?\d{4})?$`),
	"GB": regexp.MustCompile(`(?i)^(gir0aa|[a-z]{1,2}\d[a-z\d]?\d[a-z]{2})$`),
}

var mobileGrammars = map[string]*regexp.Regexp{
	"DE": regexp.MustCompile(`^((\+49|0)1)(5[0-25-9]\d|6([23]|0\d?)|7([0-57-9]|6\d))\d{7,9}$`),
	"AT": regexp.MustCompile(`^(\+43|0)\d{1,4}\d{3,12}$`),
	"CH": regexp.MustCompile(`^(\+41|0)([1-9])\d{1,9}$`),
	"LI": regexp.MustCompile(`^(\+423)?[67]\d{6}$`),
	"LU": regexp.MustCompile(`^(\+352)?(6\d{8})$`),
	"BE": regexp.MustCompile(`^(\+?32|0)4\d{8}$`),
	"DK": regexp.MustCompile(`^(\+?45)?\d{8}$`),
	"NL": regexp.MustCompile(`^(((\+|00)?31\(0\))|((\+|00)?31)|0)6\d{8}$`),
	"FR": regexp.MustCompile(`^(\+?33|0)[67]\d{8}$`),
	"IT": regexp.MustCompile(`^(\+?39)?\s?3\d{2} ?\d{6,7}$`),
	"PL": regexp.MustCompile(`^(\+?48)?[5-8]\d{8}$`),
	"US": regexp.MustCompile(`^((\+1|1)?[2-9]\d{2}[2-9]\d{6})$`),
	"GB": regexp.MustCompile(`^(\+?44|0)7\d{9}$`),
}

var houseNumberRe = regexp.MustCompile(`^\d{1,4}([-/]?\d{1,3})?( ?[A-Za-z])?$`)

var compactSeparators = strings.NewReplacer(" ", "", "-", "", "/", "", "(", "", ")", "", ".", "")

// matchPostal ignores inner whitespace, so "1234 AB" and "1234AB" are equal.
func matchPostal(re *regexp.Regexp) checkFunc {
	return func(raw string) (string, string) {
		s := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
		if !re.MatchString(s) {
			return "", "format"
		}
		return s, ""
	}
}

// matchPhone matches the number with separators removed. A leading
// international 00 prefix is rewritten to +.
func matchPhone(re *regexp.Regexp) checkFunc {
	return func(raw string) (string, string) {
		s := compactSeparators.Replace(raw)
		if strings.HasPrefix(s, "00") {
			s = "+" + s[2:]
		}
		if !re.MatchString(s) {
			return "", "format"
		}
		return s, ""
	}
}

func checkHouseNumber(raw string) (string, string) {
	if !houseNumberRe.MatchString(raw) {
		return "", "format"
	}
	return raw, ""
}

func checkEmail(raw string) (string, string) {
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Name != "" || addr.Address != raw {
		return "", "format"
	}
	at := strings.LastIndex(raw, "@")
	domain := raw[at+1:]
	if !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") || strings.HasPrefix(domain, ".") {
		return "", "domain"
	}
	return raw[:at+1] + strings.ToLower(domain), ""
}
