// Package classifier provides the pre-fitted text vectorizer and binary
// classifier used to flag uploaded rows.
//
// Both artifacts are fitted elsewhere and exported as JSON. They are loaded
// once at startup into an Artifacts value, which is immutable afterwards and
// safe to share between concurrent requests.
//
// Vectorizer artifact:
//
//	{
//	  "kind": "count",                // or "tfidf"
//	  "vocabulary": {"acme": 0, "payment": 1},
//	  "lowercase": true,
//	  "token_pattern": "",            // optional, RE2 syntax
//	  "ngram_range": [1, 1],
//	  "binary": false,
//	  "stop_words": [],
//	  "idf": [],                      // tfidf only
//	  "norm": "l2"                    // tfidf only
//	}
//
// Classifier artifact:
//
//	{
//	  "kind": "linear",               // or "multinomial_nb"
//	  "classes": [0, 1],
//	  "coef": [[0.4, -1.2]],
//	  "intercept": [0.1],
//	  "feature_log_prob": [],         // multinomial_nb only
//	  "class_log_prior": []           // multinomial_nb only
//	}
package classifier
