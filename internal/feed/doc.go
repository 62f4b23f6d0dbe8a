// Package feed decodes market data payloads delivered on the price and trade
// channels into typed values with exact decimal amounts.
//
// The backend publishes prices:{SYMBOL} as "last|bid|ask|timestamp" and
// trades:{SYMBOL} as "id|price|quantity|side". JSON objects carrying the same
// field names are accepted as well.
package feed
