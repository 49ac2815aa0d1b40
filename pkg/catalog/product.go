// Package catalog builds archive search queries, runs them against the
// portal's OpenSearch endpoint and turns the resulting feed into file
// descriptors for the download engine.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/glorpus-work/ecget/pkg/errors"
)

// ProductCodes lists every product short-code the tool can request, grouped
// by instrument and processing level.
var ProductCodes = []string{
	// ATLID level 1b
	"ATL_NOM_1B", "ATL_DCC_1B", "ATL_CSC_1B", "ATL_FSC_1B",
	// MSI level 1b
	"MSI_NOM_1B", "MSI_BBS_1B", "MSI_SD1_1B", "MSI_SD2_1B",
	// BBR level 1b
	"BBR_NOM_1B", "BBR_SNG_1B", "BBR_SOL_1B", "BBR_LIN_1B",
	// CPR level 1b (JAXA product)
	"CPR_NOM_1B",
	// MSI level 1c
	"MSI_RGR_1C",
	// level 1d
	"AUX_MET_1D", "AUX_JSG_1D",
	// ATLID level 2a
	"ATL_FM__2A", "ATL_AER_2A", "ATL_ICE_2A", "ATL_TC__2A", "ATL_EBD_2A", "ATL_CTH_2A", "ATL_ALD_2A",
	// MSI level 2a
	"MSI_CM__2A", "MSI_COP_2A", "MSI_AOT_2A",
	// CPR level 2a
	"CPR_FMR_2A", "CPR_CD__2A", "CPR_TC__2A", "CPR_CLD_2A", "CPR_APC_2A",
	// ATLID-MSI level 2b
	"AM__MO__2B", "AM__CTH_2B", "AM__ACD_2B",
	// ATLID-CPR level 2b
	"AC__TC__2B",
	// BBR-MSI-(ATLID) level 2b
	"BM__RAD_2B", "BMA_FLX_2B",
	// ATLID-CPR-MSI level 2b
	"ACM_CAP_2B", "ACM_COM_2B", "ACM_RT__2B",
	// ATLID-CPR-MSI-BBR
	"ALL_DF__2B", "ALL_3D__2B",
	// Orbit files in the auxiliary data collection
	"MPL_ORBSCT", "AUX_ORBPRE", "AUX_ORBRES",
}

// Collections enumerates the archive partitions the catalogue knows about.
var Collections = []string{
	"EarthCAREL1InstChecked",
	"EarthCAREL1Validated",
	"EarthCAREL2InstChecked",
	"EarthCAREL2Validated",
	"EarthCAREL2Products",
	"EarthCAREAuxiliary",
}

// ValidateCollection checks a collection identifier against the known set.
func ValidateCollection(name string) error {
	for _, c := range Collections {
		if c == name {
			return nil
		}
	}
	return errors.Wrapf(errors.ErrUnknownCollection, "%q (known: %s)", name, strings.Join(Collections, ", "))
}

// instrument abbreviations accepted in short product forms.
var shortReplacements = [][2]string{
	{"atl", "a"}, {"msi", "m"}, {"bbr", "b"}, {"cpr", "c"}, {"aux", "x"},
}

// NormalizeProduct converts a user-supplied product name into its canonical
// short-code. Dashes, underscores, spaces and case are ignored; long
// ("atlnom1b"), medium ("atlnom") and short ("anom") forms are accepted, and
// ALL_* products additionally accept their "acmb" spellings.
func NormalizeProduct(input string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(input))

	for _, code := range ProductCodes {
		for _, accepted := range acceptedForms(code) {
			if cleaned == accepted {
				return code, nil
			}
		}
	}

	return "", errors.Wrapf(errors.ErrUnknownProduct, "%q (run 'ecget products' for the catalog)", input)
}

// ShortForm returns the abbreviated name of a product code, e.g. ANOM for
// ATL_NOM_1B.
func ShortForm(code string) string {
	long := strings.ToLower(strings.ReplaceAll(code, "_", ""))
	short := long[:len(long)-2]
	for _, r := range shortReplacements {
		short = strings.ReplaceAll(short, r[0], r[1])
	}
	return strings.ToUpper(short)
}

func acceptedForms(code string) []string {
	long := strings.ToLower(strings.ReplaceAll(code, "_", ""))
	medium := long[:len(long)-2]
	short := medium
	for _, r := range shortReplacements {
		short = strings.ReplaceAll(short, r[0], r[1])
	}

	forms := []string{long, medium, short}
	if strings.HasPrefix(code, "ALL_") {
		forms = append(forms, "acmb"+long[3:], "acmb"+short[3:])
	}
	return forms
}

// KnownBaselines maps a product code to the baselines the archive has
// published for it. The table is informational (for 'ecget products'); the
// run accepts any baseline the catalogue returns.
var KnownBaselines = map[string][]string{
	"ATL_CSC_1B": {"AC", "BA"},
	"ATL_DCC_1B": {"AC", "AD", "AE", "AF", "BA", "BC"},
	"ATL_FSC_1B": {"AC", "AD", "AE", "BA"},
	"ATL_NOM_1B": {"AC", "AD", "AE", "BA", "BC"},
	"AUX_JSG_1D": {"AC", "BA", "BC"},
	"AUX_MET_1D": {"AA"},
	"BBR_LIN_1B": {"BC"},
	"BBR_NOM_1B": {"AE", "AF", "BA", "BB", "CA", "CB", "CC", "CD", "DA"},
	"BBR_SNG_1B": {"AC", "AD", "BA", "BC"},
	"CPR_NOM_1B": {"AE", "AF", "BA", "BB", "CA", "CB", "CC", "CD", "DA"},
	"MSI_BBS_1B": {"BC"},
	"MSI_NOM_1B": {"AC", "AD", "AE", "AF", "BA", "BC"},
	"MSI_RGR_1C": {"AC", "AD", "AE", "AF", "BA", "BC"},
	"AC__TC__2B": {"AB", "AC", "AD", "BA", "CA"},
	"ACM_CAP_2B": {"AC", "AD", "BA", "BC"},
	"ACM_COM_2B": {"AC", "BA", "BC"},
	"ACM_RT__2B": {"AB", "AC", "BA", "BC"},
	"ALL_3D__2B": {"AB", "BA", "BC"},
	"ALL_DF__2B": {"AB", "BA", "BC"},
	"AM__ACD_2B": {"AB", "AC", "BA", "BB", "BC"},
	"AM__CTH_2B": {"AB", "AC", "BA", "BB", "BC"},
	"ATL_AER_2A": {"AC", "AD", "AE", "AF", "AG", "BA", "BB", "BC"},
	"ATL_ALD_2A": {"AC", "AD", "AE", "BA", "BB", "BC"},
	"ATL_CTH_2A": {"AC", "AD", "AE", "BA", "BB", "BC"},
	"ATL_EBD_2A": {"AC", "AD", "AE", "AF", "AG", "BA", "BB", "BC"},
	"ATL_FM__2A": {"AB", "AC", "AD", "BA", "BB", "BC"},
	"ATL_ICE_2A": {"AC", "AD", "AE", "AF", "AG", "BA", "BB", "BC"},
	"ATL_TC__2A": {"AC", "AD", "AE", "AF", "AG", "BA", "BB", "BC"},
	"BM__RAD_2B": {"AB", "AC", "BA", "BC"},
	"BMA_FLX_2B": {"AA", "AB", "BA", "BB", "BC"},
	"CPR_APC_2A": {"BA", "BC"},
	"CPR_CD__2A": {"AB", "AC", "AD", "BA", "BC"},
	"CPR_CLD_2A": {"AB", "BA", "BB", "BC"},
	"CPR_FMR_2A": {"AB", "AC", "AD", "BA", "BC"},
	"CPR_TC__2A": {"AB", "AC", "AD", "BA", "BC"},
	"MSI_AOT_2A": {"AB", "AC", "AD", "BC"},
	"MSI_CM__2A": {"AB", "BA", "BC"},
	"MSI_COP_2A": {"AB", "BA", "BC"},
}

// FormatCatalog renders the product table for the CLI, one product per line
// with its short form and known baselines.
func FormatCatalog() string {
	var b strings.Builder
	for _, code := range ProductCodes {
		fmt.Fprintf(&b, "%-12s %-6s", code, ShortForm(code))
		if baselines, ok := KnownBaselines[code]; ok {
			sorted := append([]string(nil), baselines...)
			sort.Strings(sorted)
			b.WriteString(strings.Join(sorted, " "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
