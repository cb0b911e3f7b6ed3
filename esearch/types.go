package esearch

import "encoding/xml"

// searchResult is the subset of an eSearchResult document the fetcher reads.
//
//	<eSearchResult>
//	  <Count>250</Count>
//	  <RetMax>100</RetMax>
//	  <RetStart>0</RetStart>
//	  <IdList><Id>31415926</Id>...</IdList>
//	</eSearchResult>
type searchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   *string  `xml:"Count"`
	IDs     []string `xml:"IdList>Id"`
	Error   string   `xml:"ERROR"`
}
