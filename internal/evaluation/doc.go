// Package evaluation scores a predicted track set against a reference track
// set. Both sets are decomposed into segments, each reference segment is
// paired with its nearest predicted segment, and the pairing is judged by
// detection identity. The resulting 2×2 contingency table feeds the skill
// scores PC, HSS, TSS and GSS.
package evaluation
